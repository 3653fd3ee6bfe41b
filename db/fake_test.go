package db

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pizzaria-telegram/models"
)

var errFake = errors.New("fake backend down")

// fakeBackend is an in-memory Backend whose operations can be forced to fail.
type fakeBackend struct {
	name string

	mu        sync.Mutex
	fail      bool
	panics    bool
	orders    map[string]models.Order
	anns      map[string]models.Announcement
	customers map[int64]int
	calls     map[string]int
	closed    bool
}

func newFake(name string) *fakeBackend {
	return &fakeBackend{
		name:      name,
		orders:    make(map[string]models.Order),
		anns:      make(map[string]models.Announcement),
		customers: make(map[int64]int),
		calls:     make(map[string]int),
	}
}

func (f *fakeBackend) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	fail, panics := f.fail, f.panics
	f.mu.Unlock()
	if panics {
		panic("boom in " + op)
	}
	if fail {
		return errFake
	}
	return nil
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Ping(context.Context) error { return f.enter("ping") }

func (f *fakeBackend) UpsertOrder(_ context.Context, o *models.Order) error {
	if err := f.enter("upsert_order"); err != nil {
		return err
	}
	f.mu.Lock()
	f.orders[o.Code] = *o
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) FindOrders(_ context.Context, flt models.OrderFilter, limit int) ([]models.Order, error) {
	if err := f.enter("find_orders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if flt.Code != "" && o.Code != flt.Code {
			continue
		}
		if flt.ChatID != 0 && o.ChatID != flt.ChatID {
			continue
		}
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackend) UpdateOrderStatus(_ context.Context, code, status, note string, at time.Time) (bool, error) {
	if err := f.enter("update_status"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[code]
	if !ok {
		return false, nil
	}
	o.Status = status
	if note != "" {
		if o.Notes == "" {
			o.Notes = note
		} else {
			o.Notes += "\n" + note
		}
	}
	o.UpdatedAt = at
	f.orders[code] = o
	return true, nil
}

func (f *fakeBackend) UpsertAnnouncement(_ context.Context, a *models.Announcement) error {
	if err := f.enter("upsert_announcement"); err != nil {
		return err
	}
	f.mu.Lock()
	f.anns[a.ID] = *a
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) FindAnnouncements(_ context.Context, q AnnouncementQuery) ([]models.Announcement, error) {
	if err := f.enter("find_announcements"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Announcement
	for _, a := range f.anns {
		if q.ActiveOnly && !a.Visible(q.Now) {
			continue
		}
		if q.Category != "" && a.Category != q.Category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeBackend) DeactivateAnnouncement(_ context.Context, id string, _ time.Time) (bool, error) {
	if err := f.enter("deactivate_announcement"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.anns[id]
	if !ok || !a.Active {
		return false, nil
	}
	a.Active = false
	f.anns[id] = a
	return true, nil
}

func (f *fakeBackend) IncrementViews(_ context.Context, ids []string) error {
	if err := f.enter("increment_views"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if a, ok := f.anns[id]; ok {
			a.Views++
			f.anns[id] = a
		}
	}
	return nil
}

func (f *fakeBackend) UpsertCustomer(_ context.Context, o *models.Order) error {
	if err := f.enter("upsert_customer"); err != nil {
		return err
	}
	f.mu.Lock()
	f.customers[o.ChatID]++
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Settings(context.Context) (map[string]string, error) {
	if err := f.enter("settings"); err != nil {
		return nil, err
	}
	return map[string]string{"taxa_entrega": "5.00", "origem": f.name}, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func openerFor(b Backend) Opener {
	return func(context.Context) (Backend, error) { return b, nil }
}

func failingOpener(context.Context) (Backend, error) { return nil, errFake }
