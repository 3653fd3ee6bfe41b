package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pizzaria-telegram/models"
)

// Postgres is the remote backend (Supabase exposes a plain Postgres endpoint).
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and probes the orders table.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("remote database url not configured")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Name() string { return SourceRemote }

func (p *Postgres) Ping(ctx context.Context) error {
	var one int
	err := p.pool.QueryRow(ctx, `SELECT 1 FROM orders LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("probe postgres: %w", err)
	}
	return nil
}

// Migrate applies the embedded Postgres schema.
func (p *Postgres) Migrate(ctx context.Context, applied func(name string)) error {
	return applyMigrations(ctx, "postgres", func(ctx context.Context, sql string) error {
		_, err := p.pool.Exec(ctx, sql)
		return err
	}, applied)
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) UpsertOrder(ctx context.Context, o *models.Order) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (order_code) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			customer_name = EXCLUDED.customer_name,
			pizza = EXCLUDED.pizza,
			size = EXCLUDED.size,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			age = EXCLUDED.age,
			payment = EXCLUDED.payment,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			price_cents = EXCLUDED.price_cents,
			delivery_fee_cents = EXCLUDED.delivery_fee_cents,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at`,
		o.Code, o.ChatID, o.CustomerName, o.Pizza, o.Size, o.Address, o.Phone, o.Age,
		o.Payment, o.Notes, o.Status, toCents(o.Price), toCents(o.DeliveryFee), o.Source,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	return err
}

func (p *Postgres) FindOrders(ctx context.Context, f models.OrderFilter, limit int) ([]models.Order, error) {
	where, args := orderWhere(f, dollar)
	args = append(args, limit)
	rows, err := p.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+
			` ORDER BY created_at DESC LIMIT `+dollar(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Order
	for rows.Next() {
		var o models.Order
		var price, fee int64
		if err := rows.Scan(&o.Code, &o.ChatID, &o.CustomerName, &o.Pizza, &o.Size, &o.Address,
			&o.Phone, &o.Age, &o.Payment, &o.Notes, &o.Status, &price, &fee, &o.Source,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Price, o.DeliveryFee = fromCents(price), fromCents(fee)
		list = append(list, o)
	}
	return list, rows.Err()
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, code, status, note string, at time.Time) (bool, error) {
	res, err := p.pool.Exec(ctx, `
		UPDATE orders SET
			status = $2,
			notes = CASE
				WHEN $3::text = '' THEN notes
				WHEN notes = '' THEN $3::text
				ELSE notes || E'\n' || $3::text
			END,
			updated_at = $4
		WHERE order_code = $1`,
		code, status, note, at.UTC(),
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (p *Postgres) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO announcements (`+announcementColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active,
			updated_at = now()`,
		a.ID, a.Title, a.Body, a.Category, a.Priority, a.CreatedAt.UTC(), a.ExpiresAt, a.Active, a.Views,
	)
	return err
}

func (p *Postgres) FindAnnouncements(ctx context.Context, q AnnouncementQuery) ([]models.Announcement, error) {
	sql := `SELECT ` + announcementColumns + ` FROM announcements WHERE 1 = 1`
	var args []any
	if q.ActiveOnly {
		args = append(args, q.Now.UTC())
		sql += ` AND active AND (expires_at IS NULL OR expires_at > ` + dollar(len(args)) + `)`
	}
	if q.Category != "" {
		args = append(args, q.Category)
		sql += ` AND category = ` + dollar(len(args))
	}
	sql += ` ORDER BY priority DESC, created_at DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += ` LIMIT ` + dollar(len(args))
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Category, &a.Priority, &a.CreatedAt,
			&a.ExpiresAt, &a.Active, &a.Views); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (p *Postgres) DeactivateAnnouncement(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := p.pool.Exec(ctx,
		`UPDATE announcements SET active = false, updated_at = $2 WHERE id = $1 AND active`, id, at.UTC())
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (p *Postgres) IncrementViews(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `UPDATE announcements SET views = views + 1 WHERE id = ANY($1)`, ids)
	return err
}

func (p *Postgres) UpsertCustomer(ctx context.Context, o *models.Order) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (chat_id, name, phone, orders_count, first_seen, last_seen)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			orders_count = users.orders_count + 1,
			last_seen = EXCLUDED.last_seen`,
		o.ChatID, o.CustomerName, o.Phone, o.CreatedAt.UTC(),
	)
	return err
}

func (p *Postgres) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT name, value FROM config ORDER BY name`)
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

var _ Backend = (*Postgres)(nil)

// MigratePostgres applies the schema over a short-lived pool, for use before
// OpenPostgres probes the orders table.
func MigratePostgres(ctx context.Context, url string, applied func(name string)) error {
	if url == "" {
		return errors.New("remote database url not configured")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	p := &Postgres{pool: pool}
	return p.Migrate(ctx, applied)
}
