package models

import "time"

type BackupMetadata struct {
	ExportedAt         time.Time `json:"exported_at"`
	OrdersCount        int       `json:"orders_count"`
	AnnouncementsCount int       `json:"announcements_count"`
	Primary            string    `json:"primary"`
}

// Backup is the JSON document produced by /backup and the backup command.
type Backup struct {
	Metadata      BackupMetadata `json:"metadata"`
	Orders        []Order        `json:"orders"`
	Announcements []Announcement `json:"announcements"`
}
