// Package conversation runs the per-chat order intake dialogue:
// flavor, name, phone, address, age, size, payment, notes, then save.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/db"
	"pizzaria-telegram/metrics"
	"pizzaria-telegram/models"
	"pizzaria-telegram/services"
)

// DefaultTTL is how long a session may live, measured from its creation.
const DefaultTTL = 30 * time.Minute

const (
	msgUnknownFlavor = "❌ Sabor não encontrado. Envie /menu para ver o cardápio."
	msgExpired       = "⏰ Seu pedido expirou depois de 30 minutos sem conclusão. Envie /menu para começar de novo."
	msgRestart       = "⚠️ Algo deu errado com seu pedido. Envie /menu para começar de novo."
	msgProcessing    = "⏳ Processando seu pedido no sistema..."
	msgSaveFailed    = "❌ Erro ao salvar pedido. Tente novamente em instantes com /menu."
)

var paymentOptions = []string{"Dinheiro", "Cartão", "Pix"}

// Reply is one outgoing message. Keyboard, when set, is shown as one-time
// reply buttons.
type Reply struct {
	Text           string
	Keyboard       []string
	RemoveKeyboard bool
}

// Result is what a step produced. Order is set only when an order was saved.
type Result struct {
	Replies []Reply
	Order   *models.Order
	Saved   db.SaveResult
}

func reply(text string) Result {
	return Result{Replies: []Reply{{Text: text}}}
}

// OrderSaver persists finished orders.
type OrderSaver interface {
	SaveOrder(ctx context.Context, o *models.Order) (db.SaveResult, error)
	PrimaryLabel() string
}

type Engine struct {
	sessions *Store[*Session]
	saver    OrderSaver
	fee      decimal.Decimal
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithTTL(d time.Duration) Option { return func(e *Engine) { e.ttl = d } }

func NewEngine(saver OrderSaver, deliveryFee decimal.Decimal, opts ...Option) *Engine {
	e := &Engine{
		sessions: NewStore[*Session](),
		saver:    saver,
		fee:      deliveryFee,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("component", "conversation")
	return e
}

func (e *Engine) ActiveSessions() int { return e.sessions.Len() }

// Start opens a session for the chosen flavor, replacing any session the chat
// already had.
func (e *Engine) Start(_ context.Context, chatID int64, flavorKey string) Result {
	f, ok := catalog.LookupFlavor(flavorKey)
	if !ok {
		return reply(msgUnknownFlavor)
	}
	now := e.now()
	e.put(&Session{
		ChatID:    chatID,
		FlavorKey: f.Key,
		Fields:    models.OrderFields{Pizza: f.Name},
		Step:      StepName,
		CreatedAt: now,
		TouchedAt: now,
	})
	e.log.Debug("session started", "chat_id", chatID, "flavor", f.Key)
	return reply(fmt.Sprintf("Ótima escolha! %s %s\nPara começar, qual o seu nome completo?", f.Emoji, f.Name))
}

// Active reports whether chatID has a session in progress.
func (e *Engine) Active(chatID int64) bool {
	_, ok := e.sessions.Get(chatID)
	return ok
}

// Abort drops the chat's session, if any.
func (e *Engine) Abort(chatID int64) bool {
	_, ok := e.sessions.Get(chatID)
	e.drop(chatID)
	return ok
}

// Handle feeds one free-text message to the chat's session. handled is false
// when the chat has no session.
func (e *Engine) Handle(ctx context.Context, chatID int64, text string) (res Result, handled bool) {
	s, ok := e.sessions.Get(chatID)
	if !ok {
		return Result{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("intake step panicked", "chat_id", chatID, "step", s.Step.String(), "panic", r)
			e.drop(chatID)
			res, handled = reply(msgRestart), true
		}
	}()

	now := e.now()
	if now.Sub(s.CreatedAt) > e.ttl {
		e.drop(chatID)
		e.metrics.SessionExpired()
		e.log.Info("session expired", "chat_id", chatID, "step", s.Step.String())
		return reply(msgExpired), true
	}

	// Work on a copy so a rejected input leaves the stored session untouched.
	next := *s
	next.TouchedAt = now
	st, ok := steps[s.Step]
	if !ok {
		panic(fmt.Sprintf("no handler for step %s", s.Step))
	}
	if retry := st.accept(&next, strings.TrimSpace(text)); retry != "" {
		return reply(retry), true
	}
	if next.Step == StepDone {
		return e.finalize(ctx, &next), true
	}
	e.put(&next)
	return Result{Replies: []Reply{prompt(next.Step)}}, true
}

func (e *Engine) finalize(ctx context.Context, s *Session) Result {
	defer e.drop(s.ChatID)

	now := e.now()
	if now.Sub(s.CreatedAt) > e.ttl {
		e.metrics.SessionExpired()
		return reply(msgExpired)
	}
	order, err := services.BuildOrder(s.ChatID, s.Fields, e.fee, e.saver.PrimaryLabel(), now)
	if err != nil {
		e.log.Warn("order incomplete", "chat_id", s.ChatID, "err", err)
		return reply(msgRestart)
	}
	processing := Reply{Text: msgProcessing, RemoveKeyboard: true}
	saved, err := e.saver.SaveOrder(ctx, order)
	if err != nil {
		e.log.Error("order not saved", "chat_id", s.ChatID, "err", err)
		return Result{Replies: []Reply{processing, {Text: msgSaveFailed}}}
	}
	order.Source = saved.Source
	return Result{
		Replies: []Reply{processing, {Text: services.RenderSummary(order)}},
		Order:   order,
		Saved:   saved,
	}
}

func (e *Engine) put(s *Session) {
	e.sessions.Put(s.ChatID, s)
	e.metrics.SetSessions(e.sessions.Len())
}

func (e *Engine) drop(chatID int64) {
	e.sessions.Delete(chatID)
	e.metrics.SetSessions(e.sessions.Len())
}

// step validates one answer. accept mutates s and returns "" on success, or
// the re-prompt text on rejection.
type step struct {
	accept func(s *Session, text string) string
}

var steps = map[Step]step{
	StepName: {accept: func(s *Session, text string) string {
		if utf8.RuneCountInString(text) < 3 {
			return "❌ Nome muito curto. Qual o seu nome completo?"
		}
		s.Fields.Name = titleName(text)
		s.Step = StepPhone
		return ""
	}},
	StepPhone: {accept: func(s *Session, text string) string {
		phone, ok := services.NormalizePhone(text)
		if !ok {
			return "❌ Telefone inválido. Envie o DDD e o número (10 ou 11 dígitos)."
		}
		s.Fields.Phone = phone
		s.Step = StepAddress
		return ""
	}},
	StepAddress: {accept: func(s *Session, text string) string {
		if utf8.RuneCountInString(text) < 10 {
			return "❌ Endereço muito curto. Informe rua, número e bairro."
		}
		s.Fields.Address = text
		s.Step = StepAge
		return ""
	}},
	StepAge: {accept: func(s *Session, text string) string {
		age, err := strconv.Atoi(text)
		if err != nil || age < 1 || age > 120 {
			return "❌ Idade inválida. Envie um número entre 1 e 120."
		}
		s.Fields.Age = strconv.Itoa(age)
		s.Step = StepSize
		return ""
	}},
	StepSize: {accept: func(s *Session, text string) string {
		s.Fields.Size = catalog.MatchSize(text).Name
		s.Step = StepPayment
		return ""
	}},
	StepPayment: {accept: func(s *Session, text string) string {
		s.Fields.Payment = text
		s.Step = StepNotes
		return ""
	}},
	StepNotes: {accept: func(s *Session, text string) string {
		switch strings.ToLower(text) {
		case "ok", "nenhuma":
			s.Fields.Notes = ""
		default:
			s.Fields.Notes = text
		}
		s.Step = StepDone
		return ""
	}},
}

// titleName capitalizes each word of a customer name. A Caser is stateful, so
// one is built per call.
func titleName(name string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.Join(strings.Fields(name), " "))
}

func sizeLabels() []string {
	sizes := catalog.Sizes()
	out := make([]string, 0, len(sizes))
	for _, s := range sizes {
		out = append(out, fmt.Sprintf("%s (%s)", s.Name, s.Diameter))
	}
	return out
}

func prompt(st Step) Reply {
	switch st {
	case StepPhone:
		return Reply{Text: "📞 Qual o seu telefone com DDD?"}
	case StepAddress:
		return Reply{Text: "🏠 Qual o endereço de entrega? (Rua, número, bairro)"}
	case StepAge:
		return Reply{Text: "🎂 Qual a sua idade?"}
	case StepSize:
		return Reply{Text: "📏 Qual o tamanho da pizza?", Keyboard: sizeLabels()}
	case StepPayment:
		return Reply{Text: "💳 Qual a forma de pagamento?", Keyboard: paymentOptions}
	case StepNotes:
		return Reply{Text: "📝 Alguma observação? (sem cebola, troco para 100...)\nEnvie OK ou nenhuma se não houver.", RemoveKeyboard: true}
	default:
		return Reply{Text: "Qual o seu nome completo?"}
	}
}
