package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
	"pizzaria-telegram/services"
)

const (
	myOrdersLimit = 5
	msgIntakeOpen = "🕐 Você tem um pedido em andamento. Escolha um sabor para recomeçar ou envie /sair para desistir."
)

func (b *Bot) handleStart(ctx context.Context, m *tgbotapi.Message, args string) {
	welcome := b.gw.Settings(ctx)["mensagem_boas_vindas"]
	if welcome == "" {
		welcome = "Bem-vindo à Pizzaria Romeo! 🍕"
	}
	b.send(m.Chat.ID, welcome)
	b.handleMenu(ctx, m, args)
}

// handleMenu shows the active announcements, then the flavor list.
func (b *Bot) handleMenu(ctx context.Context, m *tgbotapi.Message, _ string) {
	anns, err := b.gw.FindActiveAnnouncements(ctx, "")
	if err != nil {
		b.log.Warn("announcements unavailable", "err", err)
	}
	if len(anns) > 0 {
		ids := make([]string, 0, len(anns))
		for i := range anns {
			b.send(m.Chat.ID, renderAnnouncement(&anns[i]))
			ids = append(ids, anns[i].ID)
		}
		b.gw.MarkAnnouncementsViewed(ctx, ids)
	}
	menu := renderMenu()
	if b.engine.Active(m.Chat.ID) {
		menu += "\n\n" + msgIntakeOpen
	}
	b.send(m.Chat.ID, menu)
}

func (b *Bot) handleFlavor(ctx context.Context, m *tgbotapi.Message, flavorKey string) {
	res := b.engine.Start(ctx, m.Chat.ID, flavorKey)
	for _, r := range res.Replies {
		r.RemoveKeyboard = true
		b.sendReply(m.Chat.ID, r)
	}
}

func (b *Bot) handleMyOrders(ctx context.Context, m *tgbotapi.Message, _ string) {
	orders, err := b.gw.FindOrders(ctx, models.OrderFilter{ChatID: m.Chat.ID}, myOrdersLimit)
	if err != nil || len(orders) == 0 {
		b.send(m.Chat.ID, "📭 Você ainda não tem pedidos. "+msgFallback)
		return
	}
	var sb strings.Builder
	sb.WriteString("🧾 Seus últimos pedidos:\n")
	for i := range orders {
		o := &orders[i]
		fmt.Fprintf(&sb, "\n🔖 %s\n🍕 %s (%s) — %s\n%s\n", o.Code, o.Pizza, o.Size,
			services.FormatBRL(o.Total()), catalog.StatusLabel(o.Status))
	}
	b.send(m.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleInfo(ctx context.Context, m *tgbotapi.Message, _ string) {
	s := b.gw.Settings(ctx)
	get := func(k, def string) string {
		if v := s[k]; v != "" {
			return v
		}
		return def
	}
	var sb strings.Builder
	sb.WriteString("ℹ️ PIZZARIA ROMEO\n\n")
	fmt.Fprintf(&sb, "🕐 Horário: %s\n", get("horario_funcionamento", "consulte pelo telefone"))
	fmt.Fprintf(&sb, "🛵 Entrega: %s\n", get("tempo_entrega", "40-50 min"))
	fmt.Fprintf(&sb, "💵 Taxa de entrega: %s\n", services.FormatBRL(b.fee))
	if v := s["pedido_minimo"]; v != "" {
		fmt.Fprintf(&sb, "🧾 Pedido mínimo: R$ %s\n", strings.Replace(v, ".", ",", 1))
	}
	if v := s["telefone_contato"]; v != "" {
		fmt.Fprintf(&sb, "📞 Contato: %s\n", v)
	}
	b.send(m.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleHelp(_ context.Context, m *tgbotapi.Message, _ string) {
	text := `🍕 Como pedir:
1. Envie /menu e escolha um sabor (ex.: /calabresa)
2. Responda nome, telefone, endereço, idade, tamanho, pagamento e observações
3. Pronto! Você recebe o código do pedido.

/menu - cardápio
/meuspedidos - seus últimos pedidos
/info - horário, entrega e contato
/sair - desistir do pedido em andamento`
	if b.isAdmin(m) {
		text += `

🔐 Administração:
/pedidos [status] - últimos pedidos
/pedido <código> - detalhes
/buscar <texto> - procurar pedidos
/status [código] - mudar status
/cancelar [código] - cancelar pedido
/aviso - novo aviso
/avisos - listar avisos
/desativar <id> - desativar aviso
/relatorio - estatísticas
/backup - exportar dados
/reconectar - reconectar bancos`
	}
	b.send(m.Chat.ID, text)
}

// handleQuit abandons whatever the chat has in progress: the admin's flow
// first, otherwise the caller's own intake session.
func (b *Bot) handleQuit(_ context.Context, m *tgbotapi.Message, _ string) {
	chatID := m.Chat.ID
	if b.isAdmin(m) {
		if _, ok := b.flows.Get(chatID); ok {
			b.flows.Delete(chatID)
			b.sendReply(chatID, replyRemove("❎ Operação cancelada."))
			return
		}
	}
	if b.engine.Abort(chatID) {
		b.sendReply(chatID, replyRemove("❎ Pedido em andamento cancelado. Envie /menu quando quiser pedir."))
		return
	}
	b.send(chatID, "Nenhuma operação em andamento.")
}

func renderMenu() string {
	var sb strings.Builder
	sb.WriteString("🍕 CARDÁPIO PIZZARIA ROMEO 🍕\nEscolha seu sabor favorito:\n")
	var savory, sweet []catalog.Flavor
	for _, f := range catalog.Flavors() {
		if f.Sweet {
			sweet = append(sweet, f)
		} else {
			savory = append(savory, f)
		}
	}
	write := func(title string, list []catalog.Flavor) {
		fmt.Fprintf(&sb, "\n%s\n", title)
		for _, f := range list {
			fmt.Fprintf(&sb, "/%s - %s %s - %s\n", f.Key, f.Emoji, f.Name, services.FormatBRL(f.BasePrice))
		}
	}
	write("Salgadas:", savory)
	write("Doces:", sweet)
	sb.WriteString("\nPreços para tamanho Grande. Broto, Média e Família ajustam o valor.")
	return sb.String()
}

var categoryGlyphs = map[string]string{
	models.CategoryGeneral: "📢",
	models.CategoryPromo:   "🔥",
	models.CategoryWarning: "⚠️",
	models.CategoryInfo:    "ℹ️",
}

func renderAnnouncement(a *models.Announcement) string {
	glyph := categoryGlyphs[a.Category]
	if glyph == "" {
		glyph = "📢"
	}
	return fmt.Sprintf("%s %s\n\n%s", glyph, strings.ToUpper(a.Title), a.Body)
}
