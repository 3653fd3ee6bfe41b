package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pizzaria-telegram/models"

	_ "modernc.org/sqlite"
)

// SQLite is the local durable backend. It is always opened and is the
// mandatory second write of every order.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// embedded schema, including the default config rows.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the bot and admin goroutines.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &SQLite{db: sqlDB}
	if err := s.Migrate(ctx, nil); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) Name() string { return SourceLocal }

func (s *SQLite) Ping(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM config`).Scan(&n); err != nil {
		return fmt.Errorf("probe sqlite: %w", err)
	}
	return nil
}

func (s *SQLite) Migrate(ctx context.Context, applied func(name string)) error {
	return applyMigrations(ctx, "sqlite", func(ctx context.Context, q string) error {
		_, err := s.db.ExecContext(ctx, q)
		return err
	}, applied)
}

func (s *SQLite) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *SQLite) UpsertOrder(ctx context.Context, o *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_code) DO UPDATE SET
			chat_id = excluded.chat_id,
			customer_name = excluded.customer_name,
			pizza = excluded.pizza,
			size = excluded.size,
			address = excluded.address,
			phone = excluded.phone,
			age = excluded.age,
			payment = excluded.payment,
			notes = excluded.notes,
			status = excluded.status,
			price_cents = excluded.price_cents,
			delivery_fee_cents = excluded.delivery_fee_cents,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		o.Code, o.ChatID, o.CustomerName, o.Pizza, o.Size, o.Address, o.Phone, o.Age,
		o.Payment, o.Notes, o.Status, toCents(o.Price), toCents(o.DeliveryFee), o.Source,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	return err
}

func (s *SQLite) FindOrders(ctx context.Context, f models.OrderFilter, limit int) ([]models.Order, error) {
	where, args := orderWhere(f, question)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Order
	for rows.Next() {
		var o models.Order
		var price, fee int64
		var created, updated string
		if err := rows.Scan(&o.Code, &o.ChatID, &o.CustomerName, &o.Pizza, &o.Size, &o.Address,
			&o.Phone, &o.Age, &o.Payment, &o.Notes, &o.Status, &price, &fee, &o.Source,
			&created, &updated); err != nil {
			return nil, err
		}
		o.Price, o.DeliveryFee = fromCents(price), fromCents(fee)
		if o.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if o.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (s *SQLite) UpdateOrderStatus(ctx context.Context, code, status, note string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			status = ?,
			notes = CASE
				WHEN ? = '' THEN notes
				WHEN notes = '' THEN ?
				ELSE notes || char(10) || ?
			END,
			updated_at = ?
		WHERE order_code = ?`,
		status, note, note, note, formatTime(at), code,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	var expires any
	if a.ExpiresAt != nil {
		expires = formatTime(*a.ExpiresAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (`+announcementColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			category = excluded.category,
			priority = excluded.priority,
			expires_at = excluded.expires_at,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		a.ID, a.Title, a.Body, a.Category, a.Priority, formatTime(a.CreatedAt), expires,
		boolToInt(a.Active), a.Views, formatTime(time.Now()),
	)
	return err
}

func (s *SQLite) FindAnnouncements(ctx context.Context, q AnnouncementQuery) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE 1 = 1`
	var args []any
	if q.ActiveOnly {
		query += ` AND active = 1 AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, formatTime(q.Now))
	}
	if q.Category != "" {
		query += ` AND category = ?`
		args = append(args, q.Category)
	}
	query += ` ORDER BY priority DESC, created_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Announcement
	for rows.Next() {
		var a models.Announcement
		var created string
		var expires sql.NullString
		var active int
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Category, &a.Priority, &created,
			&expires, &active, &a.Views); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if expires.Valid {
			t, err := parseTime(expires.String)
			if err != nil {
				return nil, err
			}
			a.ExpiresAt = &t
		}
		a.Active = active != 0
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *SQLite) DeactivateAnnouncement(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET active = 0, updated_at = ? WHERE id = ? AND active = 1`, formatTime(at), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) IncrementViews(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `UPDATE announcements SET views = views + 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) UpsertCustomer(ctx context.Context, o *models.Order) error {
	seen := formatTime(o.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, name, phone, orders_count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			orders_count = users.orders_count + 1,
			last_seen = excluded.last_seen`,
		o.ChatID, o.CustomerName, o.Phone, seen, seen,
	)
	return err
}

func (s *SQLite) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM config ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Backend = (*SQLite)(nil)
