package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/metrics"
	"pizzaria-telegram/models"
	"pizzaria-telegram/services"
)

// Mode names which backend is authoritative for reads.
type Mode int

const (
	ModeLocalPrimary Mode = iota
	ModeRemotePrimary
)

func (m Mode) String() string {
	if m == ModeRemotePrimary {
		return SourceRemote
	}
	return SourceLocal
}

// Opener opens one backend. A nil Opener means the backend is not configured.
type Opener func(ctx context.Context) (Backend, error)

// SaveResult reports a successful save. Source is the backend reported to the
// customer: remote when the remote write succeeded, local otherwise.
type SaveResult struct {
	Code        string
	Source      string
	RemoteSaved bool
	LocalSaved  bool
}

const (
	statsLimit  = 10000
	backupLimit = 100000
)

// Gateway writes to both backends and reads from the primary with fallback to
// the local store. The primary is chosen at Open and changes only through
// Reinitialize.
type Gateway struct {
	openRemote Opener
	openLocal  Opener

	mu     sync.RWMutex
	remote Backend
	local  Backend
	mode   Mode

	// inflight is held shared by every operation for its whole duration so
	// Reinitialize can wait for users of replaced backends before closing them.
	inflight sync.RWMutex

	now     func() time.Time
	codes   func(time.Time) string
	loc     *time.Location
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

func WithCodeGenerator(f func(time.Time) string) Option { return func(g *Gateway) { g.codes = f } }

// WithLocation sets the calendar used for "today" in Statistics.
func WithLocation(loc *time.Location) Option { return func(g *Gateway) { g.loc = loc } }

func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

// Open builds a gateway and runs the initialization protocol: probe the remote
// store, always open the local store, and pick the primary. It fails only when
// neither backend is available.
func Open(ctx context.Context, remote, local Opener, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		openRemote: remote,
		openLocal:  local,
		now:        time.Now,
		codes:      services.NewOrderCode,
		loc:        time.Local,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	g.log = g.log.With("component", "gateway")
	rb, lb, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	g.install(rb, lb)
	return g, nil
}

// open runs the initialization protocol without touching the installed
// backends: probe the remote store, then open the local store.
func (g *Gateway) open(ctx context.Context) (remote, local Backend, err error) {
	if g.openRemote != nil {
		b, err := g.openRemote(ctx)
		if err != nil {
			g.log.Warn("remote backend unavailable, using local only", "err", err)
		} else {
			remote = b
		}
	} else {
		g.log.Info("remote backend not configured, using local only")
	}
	if g.openLocal != nil {
		b, err := g.openLocal(ctx)
		if err != nil {
			g.log.Error("local backend unavailable", "err", err)
		} else {
			local = b
		}
	}
	if remote == nil && local == nil {
		return nil, nil, ErrNoBackend
	}
	return remote, local, nil
}

// install swaps in a new backend pair and returns the previous one.
func (g *Gateway) install(remote, local Backend) (oldRemote, oldLocal Backend) {
	mode := ModeLocalPrimary
	if remote != nil {
		mode = ModeRemotePrimary
	}
	g.mu.Lock()
	oldRemote, oldLocal = g.remote, g.local
	g.remote, g.local, g.mode = remote, local, mode
	g.mu.Unlock()
	g.log.Info("storage ready", "primary", mode.String(), "local", local != nil)
	return oldRemote, oldLocal
}

// Reinitialize repeats the initialization protocol and is the only way the
// primary changes. The current backends keep serving until the new ones are
// open; when nothing can be opened they stay installed and the error is
// returned. A local store that fails to reopen is replaced by the current one.
func (g *Gateway) Reinitialize(ctx context.Context) (Mode, error) {
	remote, local, err := g.open(ctx)
	if err != nil {
		g.log.Warn("reinitialize failed, keeping current backends", "err", err)
		return g.Mode(), err
	}
	if local == nil {
		g.mu.RLock()
		local = g.local
		g.mu.RUnlock()
	}
	oldRemote, oldLocal := g.install(remote, local)

	g.inflight.Lock()
	g.inflight.Unlock()
	closeReplaced(oldRemote, remote, local)
	closeReplaced(oldLocal, remote, local)
	return g.Mode(), nil
}

// closeReplaced closes old unless it is still installed.
func closeReplaced(old Backend, installed ...Backend) {
	if old == nil {
		return
	}
	for _, b := range installed {
		if b == old {
			return
		}
	}
	old.Close()
}

func (g *Gateway) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// PrimaryLabel is "remote" or "local".
func (g *Gateway) PrimaryLabel() string {
	return g.Mode().String()
}

func (g *Gateway) Close() {
	g.closeBackends()
}

func (g *Gateway) closeBackends() {
	g.inflight.Lock()
	defer g.inflight.Unlock()
	g.mu.Lock()
	remote, local := g.remote, g.local
	g.remote, g.local = nil, nil
	g.mu.Unlock()
	if remote != nil {
		remote.Close()
	}
	if local != nil {
		local.Close()
	}
}

// acquire pins the installed backends for one operation and returns the remote
// backend (nil in local-primary mode) and the local one. release must be called
// when the operation ends; acquire calls must not be nested.
func (g *Gateway) acquire() (remote, local Backend, release func()) {
	g.inflight.RLock()
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.mode == ModeRemotePrimary {
		remote = g.remote
	}
	return remote, g.local, g.inflight.RUnlock
}

// call runs one backend operation, turning a panic into an error so a failing
// backend can never abort the other backend's attempt.
func (g *Gateway) call(b Backend, op string, fn func() error) (err error) {
	if b == nil {
		return ErrNoBackend
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s panic: %v", b.Name(), op, r)
		}
		if err != nil {
			g.metrics.BackendError(b.Name(), op)
			g.log.Warn("backend call failed", "backend", b.Name(), "op", op, "err", err)
		}
	}()
	return fn()
}

// SaveOrder assigns the order code (when empty) and writes to the remote store
// and then, unconditionally, to the local store. The order is saved when at
// least one write succeeded.
func (g *Gateway) SaveOrder(ctx context.Context, o *models.Order) (SaveResult, error) {
	if o.Code == "" {
		o.Code = g.codes(g.now())
	}
	remote, local, release := g.acquire()
	defer release()

	var remoteErr error
	if remote != nil {
		remoteErr = g.call(remote, "save_order", func() error { return remote.UpsertOrder(ctx, o) })
	} else {
		remoteErr = errors.New("remote backend inactive")
	}
	localErr := g.call(local, "save_order", func() error { return local.UpsertOrder(ctx, o) })

	res := SaveResult{Code: o.Code, RemoteSaved: remoteErr == nil, LocalSaved: localErr == nil}
	switch {
	case res.RemoteSaved:
		res.Source = SourceRemote
	case res.LocalSaved:
		res.Source = SourceLocal
	default:
		g.metrics.OrderSaveFailed()
		return res, fmt.Errorf("%w: %w", ErrNotSaved, errors.Join(remoteErr, localErr))
	}
	g.metrics.OrderSaved(res.Source)
	g.log.Info("order saved", "code", o.Code, "source", res.Source, "remote", res.RemoteSaved, "local", res.LocalSaved)

	if res.RemoteSaved {
		_ = g.call(remote, "upsert_customer", func() error { return remote.UpsertCustomer(ctx, o) })
	}
	if res.LocalSaved {
		_ = g.call(local, "upsert_customer", func() error { return local.UpsertCustomer(ctx, o) })
	}
	return res, nil
}

// FindOrders reads from the remote store when it is primary and falls back to
// the local store on error or an empty result. Both failing yields an empty list.
func (g *Gateway) FindOrders(ctx context.Context, f models.OrderFilter, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	remote, local, release := g.acquire()
	defer release()
	if remote != nil {
		var list []models.Order
		err := g.call(remote, "find_orders", func() (err error) {
			list, err = remote.FindOrders(ctx, f, limit)
			return err
		})
		if err == nil && len(list) > 0 {
			return list, nil
		}
	}
	var list []models.Order
	if err := g.call(local, "find_orders", func() (err error) {
		list, err = local.FindOrders(ctx, f, limit)
		return err
	}); err != nil {
		return []models.Order{}, nil
	}
	if list == nil {
		list = []models.Order{}
	}
	return list, nil
}

// FindOrder returns the order with the given code, if any.
func (g *Gateway) FindOrder(ctx context.Context, code string) (*models.Order, bool, error) {
	list, err := g.FindOrders(ctx, models.OrderFilter{Code: code}, 1)
	if err != nil || len(list) == 0 {
		return nil, false, err
	}
	return &list[0], true, nil
}

// UpdateOrderStatus updates both backends independently. A non-empty reason is
// appended to the notes as "[dd/mm HH:MM] reason" on a new line. It reports
// true when either backend changed a row.
func (g *Gateway) UpdateOrderStatus(ctx context.Context, code, status, reason string) (bool, error) {
	if !catalog.ValidStatus(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	now := g.now()
	note := ""
	if reason != "" {
		note = "[" + now.In(g.loc).Format("02/01 15:04") + "] " + reason
	}
	remote, local, release := g.acquire()
	defer release()

	var remoteChanged, localChanged bool
	if remote != nil {
		_ = g.call(remote, "update_status", func() (err error) {
			remoteChanged, err = remote.UpdateOrderStatus(ctx, code, status, note, now)
			return err
		})
	}
	_ = g.call(local, "update_status", func() (err error) {
		localChanged, err = local.UpdateOrderStatus(ctx, code, status, note, now)
		return err
	})
	ok := remoteChanged || localChanged
	if ok {
		g.log.Info("order status updated", "code", code, "status", status, "remote", remoteChanged, "local", localChanged)
	}
	return ok, nil
}

// SaveAnnouncement assigns id and creation time when missing and dual-writes.
func (g *Gateway) SaveAnnouncement(ctx context.Context, a *models.Announcement) (SaveResult, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = g.now().UTC()
	}
	remote, local, release := g.acquire()
	defer release()

	remoteErr := errors.New("remote backend inactive")
	if remote != nil {
		remoteErr = g.call(remote, "save_announcement", func() error { return remote.UpsertAnnouncement(ctx, a) })
	}
	localErr := g.call(local, "save_announcement", func() error { return local.UpsertAnnouncement(ctx, a) })

	res := SaveResult{Code: a.ID, RemoteSaved: remoteErr == nil, LocalSaved: localErr == nil}
	switch {
	case res.RemoteSaved:
		res.Source = SourceRemote
	case res.LocalSaved:
		res.Source = SourceLocal
	default:
		return res, fmt.Errorf("%w: %w", ErrNotSaved, errors.Join(remoteErr, localErr))
	}
	return res, nil
}

// FindActiveAnnouncements returns active, unexpired announcements ordered by
// priority then creation time, newest first.
func (g *Gateway) FindActiveAnnouncements(ctx context.Context, category string) ([]models.Announcement, error) {
	now := g.now()
	list := g.findAnnouncements(ctx, AnnouncementQuery{Category: category, ActiveOnly: true, Now: now})
	out := list[:0]
	for _, a := range list {
		if a.Visible(now) && (category == "" || a.Category == category) {
			out = append(out, a)
		}
	}
	sortAnnouncements(out)
	return out, nil
}

// AllAnnouncements includes inactive ones; used by backups and the admin list.
func (g *Gateway) AllAnnouncements(ctx context.Context) []models.Announcement {
	list := g.findAnnouncements(ctx, AnnouncementQuery{Now: g.now()})
	sortAnnouncements(list)
	return list
}

func (g *Gateway) findAnnouncements(ctx context.Context, q AnnouncementQuery) []models.Announcement {
	remote, local, release := g.acquire()
	defer release()
	if remote != nil {
		var list []models.Announcement
		err := g.call(remote, "find_announcements", func() (err error) {
			list, err = remote.FindAnnouncements(ctx, q)
			return err
		})
		if err == nil && len(list) > 0 {
			return list
		}
	}
	var list []models.Announcement
	if err := g.call(local, "find_announcements", func() (err error) {
		list, err = local.FindAnnouncements(ctx, q)
		return err
	}); err != nil || list == nil {
		return []models.Announcement{}
	}
	return list
}

func sortAnnouncements(list []models.Announcement) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

// DeactivateAnnouncement soft-deletes on both backends.
func (g *Gateway) DeactivateAnnouncement(ctx context.Context, id string) (bool, error) {
	now := g.now()
	remote, local, release := g.acquire()
	defer release()
	var remoteChanged, localChanged bool
	if remote != nil {
		_ = g.call(remote, "deactivate_announcement", func() (err error) {
			remoteChanged, err = remote.DeactivateAnnouncement(ctx, id, now)
			return err
		})
	}
	_ = g.call(local, "deactivate_announcement", func() (err error) {
		localChanged, err = local.DeactivateAnnouncement(ctx, id, now)
		return err
	})
	return remoteChanged || localChanged, nil
}

// MarkAnnouncementsViewed bumps view counters, best-effort on both backends.
func (g *Gateway) MarkAnnouncementsViewed(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	remote, local, release := g.acquire()
	defer release()
	if remote != nil {
		_ = g.call(remote, "increment_views", func() error { return remote.IncrementViews(ctx, ids) })
	}
	_ = g.call(local, "increment_views", func() error { return local.IncrementViews(ctx, ids) })
}

// Settings returns the config table from the primary, falling back to local.
func (g *Gateway) Settings(ctx context.Context) map[string]string {
	remote, local, release := g.acquire()
	defer release()
	if remote != nil {
		var m map[string]string
		err := g.call(remote, "settings", func() (err error) {
			m, err = remote.Settings(ctx)
			return err
		})
		if err == nil && len(m) > 0 {
			return m
		}
	}
	var m map[string]string
	if err := g.call(local, "settings", func() (err error) {
		m, err = local.Settings(ctx)
		return err
	}); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

// Statistics recomputes the aggregate report on every call.
func (g *Gateway) Statistics(ctx context.Context) (models.Stats, error) {
	orders, err := g.FindOrders(ctx, models.OrderFilter{}, statsLimit)
	if err != nil {
		return models.Stats{}, err
	}
	anns, err := g.FindActiveAnnouncements(ctx, "")
	if err != nil {
		return models.Stats{}, err
	}

	now := g.now().In(g.loc)
	y, m, d := now.Date()
	st := models.Stats{
		TotalOrders:         len(orders),
		ByStatus:            make(map[string]int),
		ByFlavor:            make(map[string]int),
		Revenue:             decimal.Zero,
		AverageTicket:       decimal.Zero,
		ActiveAnnouncements: len(anns),
		Primary:             g.PrimaryLabel(),
	}
	for i := range orders {
		o := &orders[i]
		oy, om, od := o.CreatedAt.In(g.loc).Date()
		if oy == y && om == m && od == d {
			st.TodayOrders++
		}
		st.ByStatus[o.Status]++
		st.ByFlavor[catalog.FlavorKey(o.Pizza)]++
		st.Revenue = st.Revenue.Add(o.Total())
	}
	if len(orders) > 0 {
		st.AverageTicket = st.Revenue.Div(decimal.NewFromInt(int64(len(orders)))).Round(2)
	}
	return st, nil
}

// Backup exports every order and announcement.
func (g *Gateway) Backup(ctx context.Context) (models.Backup, error) {
	orders, err := g.FindOrders(ctx, models.OrderFilter{}, backupLimit)
	if err != nil {
		return models.Backup{}, err
	}
	return services.BuildBackup(orders, g.AllAnnouncements(ctx), g.PrimaryLabel(), g.now()), nil
}
