package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"pizzaria-telegram/conversation"
	"pizzaria-telegram/db"
	"pizzaria-telegram/models"
	"pizzaria-telegram/services"
)

const (
	msgAccessDenied = "⛔ Acesso negado."
	msgFallback     = "Envie /menu para ver o cardápio e fazer seu pedido! 🍕"
	msgUnknownCmd   = "Comando não reconhecido. Envie /ajuda para ver os comandos."
	diagnosticLimit = 200

	defaultWorkers  = 8
	workerQueueSize = 64
)

// Messenger is the part of *tgbotapi.BotAPI the bot uses.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Gateway is the persistence surface used by the command handlers.
type Gateway interface {
	FindOrders(ctx context.Context, f models.OrderFilter, limit int) ([]models.Order, error)
	FindOrder(ctx context.Context, code string) (*models.Order, bool, error)
	UpdateOrderStatus(ctx context.Context, code, status, reason string) (bool, error)
	SaveAnnouncement(ctx context.Context, a *models.Announcement) (db.SaveResult, error)
	FindActiveAnnouncements(ctx context.Context, category string) ([]models.Announcement, error)
	AllAnnouncements(ctx context.Context) []models.Announcement
	DeactivateAnnouncement(ctx context.Context, id string) (bool, error)
	MarkAnnouncementsViewed(ctx context.Context, ids []string)
	Settings(ctx context.Context) map[string]string
	Statistics(ctx context.Context) (models.Stats, error)
	Backup(ctx context.Context) (models.Backup, error)
	Reinitialize(ctx context.Context) (db.Mode, error)
	PrimaryLabel() string
}

type handlerFunc func(ctx context.Context, m *tgbotapi.Message, args string)

type Bot struct {
	api     Messenger
	gw      Gateway
	engine  *conversation.Engine
	admin   int64
	fee     decimal.Decimal
	log     *slog.Logger
	now     func() time.Time
	routes  map[Command]handlerFunc
	workers int
	flows   *conversation.Store[*adminFlow]
	notify  sync.WaitGroup
	handled sync.WaitGroup

	chatLocks sync.Map // map[chatID]*sync.Mutex
}

type Option func(*Bot)

func WithLogger(l *slog.Logger) Option { return func(b *Bot) { b.log = l } }

func WithClock(now func() time.Time) Option { return func(b *Bot) { b.now = now } }

// WithWorkers sets how many chat shards Run processes concurrently.
func WithWorkers(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.workers = n
		}
	}
}

// New wires the bot. adminID 0 disables every admin command.
func New(api Messenger, gw Gateway, engine *conversation.Engine, adminID int64, deliveryFee decimal.Decimal, opts ...Option) *Bot {
	b := &Bot{
		api:     api,
		gw:      gw,
		engine:  engine,
		admin:   adminID,
		fee:     deliveryFee,
		log:     slog.Default(),
		now:     time.Now,
		workers: defaultWorkers,
		flows:   conversation.NewStore[*adminFlow](),
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With("component", "bot")
	b.routes = map[Command]handlerFunc{
		CmdStart:         b.handleStart,
		CmdMenu:          b.handleMenu,
		CmdFlavor:        b.handleFlavor,
		CmdMyOrders:      b.handleMyOrders,
		CmdInfo:          b.handleInfo,
		CmdHelp:          b.handleHelp,
		CmdOrders:        b.handleOrders,
		CmdOrder:         b.handleOrder,
		CmdSearch:        b.handleSearch,
		CmdStatus:        b.handleStatus,
		CmdCancel:        b.handleCancel,
		CmdAnnounce:      b.handleAnnounce,
		CmdAnnouncements: b.handleAnnouncements,
		CmdDeactivate:    b.handleDeactivate,
		CmdReport:        b.handleReport,
		CmdBackup:        b.handleBackup,
		CmdReconnect:     b.handleReconnect,
		CmdQuit:          b.handleQuit,
	}
	return b
}

// SetCommands registers the customer command menu shown by Telegram clients.
func (b *Bot) SetCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "menu", Description: "Cardápio"},
		tgbotapi.BotCommand{Command: "meuspedidos", Description: "Meus pedidos"},
		tgbotapi.BotCommand{Command: "info", Description: "Horário, entrega e contato"},
		tgbotapi.BotCommand{Command: "ajuda", Description: "Ajuda"},
		tgbotapi.BotCommand{Command: "sair", Description: "Desistir do pedido em andamento"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Run consumes updates until ctx is done or the channel closes. Messages are
// sharded by chat id onto a fixed set of workers, so one chat is handled in
// arrival order while different chats run concurrently.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	queues := make([]chan *tgbotapi.Message, b.workers)
	for i := range queues {
		queues[i] = make(chan *tgbotapi.Message, workerQueueSize)
		b.handled.Add(1)
		go b.work(ctx, queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		b.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Message == nil || u.Message.Chat == nil {
				continue
			}
			q := queues[shard(u.Message.Chat.ID, len(queues))]
			select {
			case q <- u.Message:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bot) work(ctx context.Context, q <-chan *tgbotapi.Message) {
	defer b.handled.Done()
	for m := range q {
		b.HandleMessage(ctx, m)
	}
}

func shard(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}

// Wait blocks until in-flight handlers and admin notifications finish.
func (b *Bot) Wait() {
	b.handled.Wait()
	b.notify.Wait()
}

// lockChat locks by chat id and returns the unlock function.
func (b *Bot) lockChat(chatID int64) func() {
	v, _ := b.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// HandleMessage routes one inbound message: commands through the command
// table, free text to the caller's admin flow or intake session.
func (b *Bot) HandleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m == nil || m.Chat == nil {
		return
	}
	chatID := m.Chat.ID
	unlock := b.lockChat(chatID)
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panicked", "chat_id", chatID, "panic", r)
			b.send(chatID, "⚠️ Algo deu errado. Tente novamente.")
		}
	}()

	text := strings.TrimSpace(m.Text)
	if strings.HasPrefix(text, "/") {
		cmd, args := ParseCommand(text)
		h, ok := b.routes[cmd]
		if !ok {
			b.send(chatID, msgUnknownCmd)
			return
		}
		h(ctx, m, args)
		return
	}

	if b.isAdmin(m) {
		if flow, ok := b.flows.Get(chatID); ok {
			b.continueFlow(ctx, m, flow, text)
			return
		}
	}
	res, handled := b.engine.Handle(ctx, chatID, text)
	if !handled {
		b.send(chatID, msgFallback)
		return
	}
	b.deliver(chatID, res)
}

// deliver sends a conversation result and, for a saved order, alerts the admin.
func (b *Bot) deliver(chatID int64, res conversation.Result) {
	for _, r := range res.Replies {
		b.sendReply(chatID, r)
	}
	if res.Order != nil {
		order := *res.Order
		b.notify.Add(1)
		go func() {
			defer b.notify.Done()
			b.notifyAdmin(order)
		}()
	}
}

func (b *Bot) notifyAdmin(o models.Order) {
	if b.admin == 0 {
		return
	}
	b.send(b.admin, "🆕 NOVO PEDIDO\n\n"+services.RenderAdminOrder(&o))
}

func (b *Bot) isAdmin(m *tgbotapi.Message) bool {
	if b.admin == 0 {
		return false
	}
	if m.From != nil {
		return m.From.ID == b.admin
	}
	return m.Chat != nil && m.Chat.ID == b.admin
}

// requireAdmin answers non-admins with the access-denied text. Admin handlers
// call it before anything else.
func (b *Bot) requireAdmin(m *tgbotapi.Message) bool {
	if b.isAdmin(m) {
		return true
	}
	b.log.Debug("admin command denied", "chat_id", m.Chat.ID)
	b.send(m.Chat.ID, msgAccessDenied)
	return false
}

func (b *Bot) send(chatID int64, text string) {
	b.sendReply(chatID, conversation.Reply{Text: text})
}

func (b *Bot) sendReply(chatID int64, r conversation.Reply) {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	switch {
	case len(r.Keyboard) > 0:
		msg.ReplyMarkup = replyKeyboard(r.Keyboard)
	case r.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send failed", "chat_id", chatID, "err", err)
	}
}

// replyKeyboard lays options out two per row.
func replyKeyboard(options []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(options); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(options[i])}
		if i+1 < len(options) {
			row = append(row, tgbotapi.NewKeyboardButton(options[i+1]))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

// adminError reports a failure to the admin with a truncated diagnostic.
func (b *Bot) adminError(chatID int64, what string, err error) {
	b.log.Error(what, "err", err)
	diag := err.Error()
	if r := []rune(diag); len(r) > diagnosticLimit {
		diag = string(r[:diagnosticLimit]) + "…"
	}
	b.send(chatID, fmt.Sprintf("❌ %s: %s", what, diag))
}

func replyOptions(text string, options []string) conversation.Reply {
	return conversation.Reply{Text: text, Keyboard: options}
}

func replyRemove(text string) conversation.Reply {
	return conversation.Reply{Text: text, RemoveKeyboard: true}
}
