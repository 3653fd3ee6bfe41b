// Package db persists orders and announcements to a remote Postgres store and a
// local SQLite store, and reconciles the two behind Gateway.
package db

import (
	"context"
	"errors"
	"time"

	"pizzaria-telegram/models"
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

var (
	// ErrNotSaved means no backend accepted the write.
	ErrNotSaved      = errors.New("order not saved by any backend")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrNoBackend     = errors.New("no storage backend available")
)

// AnnouncementQuery selects announcements. Category "" matches every category.
type AnnouncementQuery struct {
	Category   string
	ActiveOnly bool
	Now        time.Time
	Limit      int
}

// Backend is one physical store. Gateway sequences two of them.
type Backend interface {
	Name() string
	// Ping runs a trivial read to prove the store and its schema are reachable.
	Ping(ctx context.Context) error

	UpsertOrder(ctx context.Context, o *models.Order) error
	FindOrders(ctx context.Context, f models.OrderFilter, limit int) ([]models.Order, error)
	// UpdateOrderStatus sets status and appends note (if non-empty) on a new
	// line of the notes column. changed is false when no row matched code.
	UpdateOrderStatus(ctx context.Context, code, status, note string, at time.Time) (changed bool, err error)

	UpsertAnnouncement(ctx context.Context, a *models.Announcement) error
	FindAnnouncements(ctx context.Context, q AnnouncementQuery) ([]models.Announcement, error)
	DeactivateAnnouncement(ctx context.Context, id string, at time.Time) (bool, error)
	IncrementViews(ctx context.Context, ids []string) error

	UpsertCustomer(ctx context.Context, o *models.Order) error
	Settings(ctx context.Context) (map[string]string, error)

	Close()
}

// timeFormat is fixed width so text timestamps sort chronologically in SQLite.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
