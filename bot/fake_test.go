package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/conversation"
	"pizzaria-telegram/db"
	"pizzaria-telegram/models"
)

const (
	adminID    int64 = 999
	customerID int64 = 111
)

var testNow = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

type sent struct {
	chatID   int64
	text     string
	keyboard []string
	remove   bool
	document *tgbotapi.DocumentConfig
}

// fakeMessenger records everything the bot sends.
type fakeMessenger struct {
	mu       sync.Mutex
	messages []sent
	requests int
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		s := sent{chatID: v.ChatID, text: v.Text}
		switch mk := v.ReplyMarkup.(type) {
		case tgbotapi.ReplyKeyboardMarkup:
			for _, row := range mk.Keyboard {
				for _, btn := range row {
					s.keyboard = append(s.keyboard, btn.Text)
				}
			}
		case tgbotapi.ReplyKeyboardRemove:
			s.remove = true
		}
		f.messages = append(f.messages, s)
	case tgbotapi.DocumentConfig:
		doc := v
		f.messages = append(f.messages, sent{chatID: v.ChatID, text: v.Caption, document: &doc})
	default:
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) to(chatID int64) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, m := range f.messages {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) last(chatID int64) sent {
	msgs := f.to(chatID)
	if len(msgs) == 0 {
		return sent{}
	}
	return msgs[len(msgs)-1]
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	f.messages = nil
	f.mu.Unlock()
}

// spyGateway is an in-memory Gateway and order saver that counts every call.
type spyGateway struct {
	mu        sync.Mutex
	calls     map[string]int
	orders    []models.Order
	anns      []models.Announcement
	failStats bool
	mode      db.Mode
	seq       int
}

func newSpy() *spyGateway {
	return &spyGateway{calls: make(map[string]int), mode: db.ModeRemotePrimary}
}

func (g *spyGateway) hit(op string) {
	g.calls[op]++
}

func (g *spyGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *spyGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *spyGateway) SaveOrder(_ context.Context, o *models.Order) (db.SaveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("save_order")
	g.seq++
	o.Code = fmt.Sprintf("PZ261016200000-%06d", g.seq)
	g.orders = append([]models.Order{*o}, g.orders...)
	return db.SaveResult{Code: o.Code, Source: db.SourceRemote, RemoteSaved: true, LocalSaved: true}, nil
}

func (g *spyGateway) PrimaryLabel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("primary_label")
	return g.mode.String()
}

func (g *spyGateway) FindOrders(_ context.Context, f models.OrderFilter, limit int) ([]models.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("find_orders")
	var out []models.Order
	for _, o := range g.orders {
		if (f.Code == "" || o.Code == f.Code) && (f.ChatID == 0 || o.ChatID == f.ChatID) && (f.Status == "" || o.Status == f.Status) {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (g *spyGateway) FindOrder(ctx context.Context, code string) (*models.Order, bool, error) {
	list, err := g.FindOrders(ctx, models.OrderFilter{Code: code}, 1)
	if err != nil || len(list) == 0 {
		return nil, false, err
	}
	return &list[0], true, nil
}

func (g *spyGateway) UpdateOrderStatus(_ context.Context, code, status, reason string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("update_status")
	if !catalog.ValidStatus(status) {
		return false, db.ErrInvalidStatus
	}
	for i := range g.orders {
		if g.orders[i].Code == code {
			g.orders[i].Status = status
			if reason != "" {
				g.orders[i].Notes = strings.TrimPrefix(g.orders[i].Notes+"\n"+reason, "\n")
			}
			return true, nil
		}
	}
	return false, nil
}

func (g *spyGateway) SaveAnnouncement(_ context.Context, a *models.Announcement) (db.SaveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("save_announcement")
	if a.ID == "" {
		a.ID = fmt.Sprintf("ann-%d", len(g.anns)+1)
	}
	g.anns = append(g.anns, *a)
	return db.SaveResult{Code: a.ID, Source: db.SourceLocal, LocalSaved: true}, nil
}

func (g *spyGateway) FindActiveAnnouncements(_ context.Context, category string) ([]models.Announcement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("find_announcements")
	var out []models.Announcement
	for _, a := range g.anns {
		if a.Active && (category == "" || a.Category == category) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (g *spyGateway) AllAnnouncements(context.Context) []models.Announcement {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("all_announcements")
	return append([]models.Announcement(nil), g.anns...)
}

func (g *spyGateway) DeactivateAnnouncement(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("deactivate_announcement")
	for i := range g.anns {
		if g.anns[i].ID == id && g.anns[i].Active {
			g.anns[i].Active = false
			return true, nil
		}
	}
	return false, nil
}

func (g *spyGateway) MarkAnnouncementsViewed(_ context.Context, ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("mark_viewed")
	for _, id := range ids {
		for i := range g.anns {
			if g.anns[i].ID == id {
				g.anns[i].Views++
			}
		}
	}
}

func (g *spyGateway) Settings(context.Context) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("settings")
	return map[string]string{
		"tempo_entrega":         "40-50 min",
		"telefone_contato":      "(11) 99999-0000",
		"horario_funcionamento": "Ter a Dom, 18h às 23h30",
		"mensagem_boas_vindas":  "Bem-vindo à Pizzaria Romeo! 🍕",
	}
}

func (g *spyGateway) Statistics(context.Context) (models.Stats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("statistics")
	if g.failStats {
		return models.Stats{}, errors.New(strings.Repeat("x", 500))
	}
	st := models.Stats{
		TotalOrders: len(g.orders),
		ByStatus:    map[string]int{},
		ByFlavor:    map[string]int{},
		Revenue:     decimal.Zero,
		Primary:     g.mode.String(),
	}
	for _, o := range g.orders {
		st.ByStatus[o.Status]++
		st.ByFlavor[catalog.FlavorKey(o.Pizza)]++
		st.Revenue = st.Revenue.Add(o.Total())
	}
	return st, nil
}

func (g *spyGateway) Backup(context.Context) (models.Backup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("backup")
	return models.Backup{
		Metadata:      models.BackupMetadata{ExportedAt: testNow, OrdersCount: len(g.orders), AnnouncementsCount: len(g.anns), Primary: "remote"},
		Orders:        append([]models.Order{}, g.orders...),
		Announcements: append([]models.Announcement{}, g.anns...),
	}, nil
}

func (g *spyGateway) Reinitialize(context.Context) (db.Mode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit("reinitialize")
	g.mode = db.ModeLocalPrimary
	return g.mode, nil
}

type harness struct {
	bot *Bot
	api *fakeMessenger
	gw  *spyGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeMessenger{}
	gw := newSpy()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := conversation.NewEngine(gw, decimal.RequireFromString("5.00"),
		conversation.WithClock(func() time.Time { return testNow }),
		conversation.WithLogger(quiet),
	)
	b := New(api, gw, engine, adminID, decimal.RequireFromString("5.00"),
		WithLogger(quiet),
		WithClock(func() time.Time { return testNow }),
	)
	return &harness{bot: b, api: api, gw: gw}
}

func message(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
}

// say delivers messages synchronously and waits for async notifications.
func (h *harness) say(from int64, texts ...string) {
	for _, text := range texts {
		h.bot.HandleMessage(context.Background(), message(from, text))
	}
	h.bot.Wait()
}

// placeOrder runs a full intake for chat and returns the saved order code.
func (h *harness) placeOrder(t *testing.T, chat int64, flavor string) string {
	t.Helper()
	h.say(chat, "/"+flavor, "João Pereira", "11 3333-4444", "Rua Augusta, 900 - Consolação", "41", "Média", "Cartão", "nenhuma")
	h.gw.mu.Lock()
	defer h.gw.mu.Unlock()
	if len(h.gw.orders) == 0 {
		t.Fatal("no order saved")
	}
	return h.gw.orders[0].Code
}
