package services

import (
	"encoding/json"
	"fmt"
	"time"

	"pizzaria-telegram/models"
)

// BuildBackup assembles the export document. Nil slices become empty arrays.
func BuildBackup(orders []models.Order, anns []models.Announcement, primary string, now time.Time) models.Backup {
	if orders == nil {
		orders = []models.Order{}
	}
	if anns == nil {
		anns = []models.Announcement{}
	}
	return models.Backup{
		Metadata: models.BackupMetadata{
			ExportedAt:         now.UTC(),
			OrdersCount:        len(orders),
			AnnouncementsCount: len(anns),
			Primary:            primary,
		},
		Orders:        orders,
		Announcements: anns,
	}
}

func EncodeBackup(b models.Backup) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

// BackupFileName is "backup_pizzaria_YYYYMMDD_HHMMSS.json".
func BackupFileName(now time.Time) string {
	return "backup_pizzaria_" + now.Format("20060102_150405") + ".json"
}
