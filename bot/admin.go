package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
	"pizzaria-telegram/services"
)

const (
	listLimit     = 10
	searchScan    = 200
	maxPriority   = 10
	maxExpiryDays = 90
)

type flowKind int

const (
	flowStatus flowKind = iota + 1
	flowCancel
	flowAnnounce
)

type flowStep int

const (
	stepCode flowStep = iota + 1
	stepNewStatus
	stepReason
	stepTitle
	stepBody
	stepCategory
	stepPriority
	stepExpiry
)

// adminFlow is the admin's multi-step operation in progress.
type adminFlow struct {
	Kind         flowKind
	Step         flowStep
	Code         string
	Announcement models.Announcement
}

func (b *Bot) handleOrders(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	f := models.OrderFilter{}
	if args != "" {
		status := strings.ToLower(args)
		if !catalog.ValidStatus(status) {
			b.send(m.Chat.ID, "❌ Status inválido. Use: "+statusKeys())
			return
		}
		f.Status = status
	}
	orders, err := b.gw.FindOrders(ctx, f, listLimit)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao buscar pedidos", err)
		return
	}
	b.sendOrderList(m.Chat.ID, orders)
}

func (b *Bot) handleOrder(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	if args == "" {
		b.send(m.Chat.ID, "Uso: /pedido <código>")
		return
	}
	o, ok, err := b.gw.FindOrder(ctx, strings.ToUpper(args))
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao buscar pedido", err)
		return
	}
	if !ok {
		b.send(m.Chat.ID, "❌ Pedido não encontrado.")
		return
	}
	b.send(m.Chat.ID, services.RenderAdminOrder(o))
}

// handleSearch filters the latest orders by a case- and accent-insensitive
// substring over code, customer, phone, address and pizza.
func (b *Bot) handleSearch(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	needle := catalog.Fold(args)
	if needle == "" {
		b.send(m.Chat.ID, "Uso: /buscar <texto>")
		return
	}
	orders, err := b.gw.FindOrders(ctx, models.OrderFilter{}, searchScan)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao buscar pedidos", err)
		return
	}
	var hits []models.Order
	for _, o := range orders {
		hay := catalog.Fold(strings.Join([]string{o.Code, o.CustomerName, o.Phone, o.Address, o.Pizza}, " "))
		if strings.Contains(hay, needle) {
			hits = append(hits, o)
			if len(hits) == listLimit {
				break
			}
		}
	}
	b.sendOrderList(m.Chat.ID, hits)
}

func (b *Bot) handleStatus(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	flow := &adminFlow{Kind: flowStatus, Step: stepCode}
	b.flows.Put(m.Chat.ID, flow)
	if args == "" {
		b.send(m.Chat.ID, "🔖 Qual o código do pedido? (/sair para cancelar)")
		return
	}
	b.continueFlow(ctx, m, flow, args)
}

func (b *Bot) handleCancel(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	flow := &adminFlow{Kind: flowCancel, Step: stepCode}
	b.flows.Put(m.Chat.ID, flow)
	if args == "" {
		b.send(m.Chat.ID, "🔖 Qual o código do pedido a cancelar? (/sair para cancelar)")
		return
	}
	b.continueFlow(ctx, m, flow, args)
}

func (b *Bot) handleAnnounce(_ context.Context, m *tgbotapi.Message, _ string) {
	if !b.requireAdmin(m) {
		return
	}
	b.flows.Put(m.Chat.ID, &adminFlow{Kind: flowAnnounce, Step: stepTitle})
	b.send(m.Chat.ID, "📢 Novo aviso. Qual o título? (/sair para cancelar)")
}

func (b *Bot) handleAnnouncements(ctx context.Context, m *tgbotapi.Message, _ string) {
	if !b.requireAdmin(m) {
		return
	}
	anns := b.gw.AllAnnouncements(ctx)
	if len(anns) == 0 {
		b.send(m.Chat.ID, "📭 Nenhum aviso cadastrado.")
		return
	}
	now := b.now()
	var sb strings.Builder
	sb.WriteString("📢 Avisos:\n")
	for i := range anns {
		a := &anns[i]
		state := "✅ ativo"
		if !a.Visible(now) {
			state = "⏸ inativo"
		}
		fmt.Fprintf(&sb, "\n%s [%s] prioridade %d, %s, %d visualizações\nid: %s%s\n",
			a.Title, a.Category, a.Priority, state, a.Views, a.ID, expiryNote(a))
	}
	b.send(m.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleDeactivate(ctx context.Context, m *tgbotapi.Message, args string) {
	if !b.requireAdmin(m) {
		return
	}
	if args == "" {
		b.send(m.Chat.ID, "Uso: /desativar <id>")
		return
	}
	ok, err := b.gw.DeactivateAnnouncement(ctx, args)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao desativar aviso", err)
		return
	}
	if !ok {
		b.send(m.Chat.ID, "❌ Aviso não encontrado ou já inativo.")
		return
	}
	b.send(m.Chat.ID, "✅ Aviso desativado.")
}

func (b *Bot) handleReport(ctx context.Context, m *tgbotapi.Message, _ string) {
	if !b.requireAdmin(m) {
		return
	}
	st, err := b.gw.Statistics(ctx)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao gerar relatório", err)
		return
	}
	b.send(m.Chat.ID, renderReport(st, b.engine.ActiveSessions()))
}

func (b *Bot) handleBackup(ctx context.Context, m *tgbotapi.Message, _ string) {
	if !b.requireAdmin(m) {
		return
	}
	backup, err := b.gw.Backup(ctx)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao gerar backup", err)
		return
	}
	data, err := services.EncodeBackup(backup)
	if err != nil {
		b.adminError(m.Chat.ID, "Erro ao gerar backup", err)
		return
	}
	doc := tgbotapi.NewDocument(m.Chat.ID, tgbotapi.FileBytes{
		Name:  services.BackupFileName(b.now()),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("💾 Backup: %d pedidos, %d avisos (%s)",
		backup.Metadata.OrdersCount, backup.Metadata.AnnouncementsCount, backup.Metadata.Primary)
	if _, err := b.api.Send(doc); err != nil {
		b.adminError(m.Chat.ID, "Erro ao enviar backup", err)
	}
}

func (b *Bot) handleReconnect(ctx context.Context, m *tgbotapi.Message, _ string) {
	if !b.requireAdmin(m) {
		return
	}
	b.send(m.Chat.ID, "🔄 Reconectando bancos de dados...")
	mode, err := b.gw.Reinitialize(ctx)
	if err != nil {
		b.adminError(m.Chat.ID, "Falha ao reconectar", err)
		return
	}
	b.send(m.Chat.ID, "✅ Reconectado. Banco primário: "+mode.String())
}

// continueFlow advances the admin's flow with one free-text answer.
func (b *Bot) continueFlow(ctx context.Context, m *tgbotapi.Message, flow *adminFlow, text string) {
	chatID := m.Chat.ID
	switch flow.Step {
	case stepCode:
		code := strings.ToUpper(strings.TrimSpace(text))
		o, ok, err := b.gw.FindOrder(ctx, code)
		if err != nil {
			b.flows.Delete(chatID)
			b.adminError(chatID, "Erro ao buscar pedido", err)
			return
		}
		if !ok {
			b.send(chatID, "❌ Pedido não encontrado. Envie outro código ou /sair.")
			return
		}
		if o.Status == catalog.StatusDelivered || o.Status == catalog.StatusCancelled {
			b.flows.Delete(chatID)
			b.send(chatID, fmt.Sprintf("⚠️ Pedido %s já está %s.", o.Code, catalog.StatusLabel(o.Status)))
			return
		}
		flow.Code = o.Code
		if flow.Kind == flowCancel {
			flow.Step = stepReason
			b.send(chatID, services.RenderAdminOrder(o)+"\n\n✍️ Qual o motivo do cancelamento?")
			return
		}
		flow.Step = stepNewStatus
		b.sendReply(chatID, replyOptions(services.RenderAdminOrder(o)+"\n\n📋 Qual o novo status?", nextStatuses(o.Status)))

	case stepNewStatus:
		status, ok := matchStatus(text)
		if !ok {
			b.sendReply(chatID, replyOptions("❌ Status inválido. Escolha uma opção:", statusKeyList()))
			return
		}
		if status == catalog.StatusCancelled {
			b.send(chatID, "Para cancelar use /cancelar "+flow.Code)
			return
		}
		b.applyStatus(ctx, chatID, flow.Code, status, "")

	case stepReason:
		reason := strings.TrimSpace(text)
		if reason == "" {
			b.send(chatID, "✍️ Informe o motivo do cancelamento.")
			return
		}
		b.applyStatus(ctx, chatID, flow.Code, catalog.StatusCancelled, reason)

	case stepTitle:
		if utf8.RuneCountInString(strings.TrimSpace(text)) < 3 {
			b.send(chatID, "❌ Título muito curto. Tente de novo.")
			return
		}
		flow.Announcement.Title = strings.TrimSpace(text)
		flow.Step = stepBody
		b.send(chatID, "📝 Qual a mensagem do aviso?")

	case stepBody:
		if utf8.RuneCountInString(strings.TrimSpace(text)) < 5 {
			b.send(chatID, "❌ Mensagem muito curta. Tente de novo.")
			return
		}
		flow.Announcement.Body = strings.TrimSpace(text)
		flow.Step = stepCategory
		b.sendReply(chatID, replyOptions("🏷 Qual a categoria?", models.AnnouncementCategories))

	case stepCategory:
		cat := catalog.Fold(text)
		if !models.ValidCategory(cat) {
			b.sendReply(chatID, replyOptions("❌ Categoria inválida. Escolha uma opção:", models.AnnouncementCategories))
			return
		}
		flow.Announcement.Category = cat
		flow.Step = stepPriority
		b.sendReply(chatID, replyOptions(fmt.Sprintf("⭐ Qual a prioridade? (0 a %d, maior aparece primeiro)", maxPriority),
			[]string{"0", "1", "3", "5", "10"}))

	case stepPriority:
		p, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || p < 0 || p > maxPriority {
			b.send(chatID, fmt.Sprintf("❌ Prioridade inválida. Envie um número de 0 a %d.", maxPriority))
			return
		}
		flow.Announcement.Priority = p
		flow.Step = stepExpiry
		b.sendReply(chatID, replyOptions(fmt.Sprintf("⏳ Expira em quantos dias? (1 a %d, ou nenhuma)", maxExpiryDays),
			[]string{"nenhuma", "1", "3", "7", "30"}))

	case stepExpiry:
		a := flow.Announcement
		if answer := catalog.Fold(text); answer != "nenhuma" {
			days, err := strconv.Atoi(answer)
			if err != nil || days < 1 || days > maxExpiryDays {
				b.send(chatID, fmt.Sprintf("❌ Validade inválida. Envie um número de 1 a %d ou nenhuma.", maxExpiryDays))
				return
			}
			expires := b.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
			a.ExpiresAt = &expires
		}
		b.flows.Delete(chatID)
		a.Active = true
		res, err := b.gw.SaveAnnouncement(ctx, &a)
		if err != nil {
			b.adminError(chatID, "Erro ao salvar aviso", err)
			return
		}
		b.sendReply(chatID, replyRemove(fmt.Sprintf("✅ Aviso publicado (%s).\nid: %s%s\n\n%s",
			res.Source, a.ID, expiryNote(&a), renderAnnouncement(&a))))

	default:
		b.flows.Delete(chatID)
	}
}

// applyStatus finishes a status or cancel flow and notifies the customer.
func (b *Bot) applyStatus(ctx context.Context, chatID int64, code, status, reason string) {
	b.flows.Delete(chatID)
	o, ok, err := b.gw.FindOrder(ctx, code)
	if err != nil || !ok {
		b.sendReply(chatID, replyRemove("❌ Pedido não encontrado."))
		return
	}
	if !services.ValidStatusTransition(o.Status, status) {
		b.sendReply(chatID, replyRemove(fmt.Sprintf("❌ Não é possível ir de %s para %s.",
			catalog.StatusLabel(o.Status), catalog.StatusLabel(status))))
		return
	}
	changed, err := b.gw.UpdateOrderStatus(ctx, code, status, reason)
	if err != nil {
		b.adminError(chatID, "Erro ao atualizar status", err)
		return
	}
	if !changed {
		b.sendReply(chatID, replyRemove("❌ Nenhum banco atualizou o pedido."))
		return
	}
	b.sendReply(chatID, replyRemove(fmt.Sprintf("✅ Pedido %s: %s", code, catalog.StatusLabel(status))))
	if o.ChatID != 0 {
		b.send(o.ChatID, services.CustomerMessageForOrderStatus(o, status))
	}
}

func expiryNote(a *models.Announcement) string {
	if a.ExpiresAt == nil {
		return ""
	}
	return "\nexpira em: " + a.ExpiresAt.Local().Format("02/01/2006 15:04")
}

func (b *Bot) sendOrderList(chatID int64, orders []models.Order) {
	if len(orders) == 0 {
		b.send(chatID, "📭 Nenhum pedido encontrado.")
		return
	}
	parts := make([]string, 0, len(orders))
	for i := range orders {
		parts = append(parts, services.RenderAdminOrder(&orders[i]))
	}
	b.send(chatID, fmt.Sprintf("📋 %d pedido(s):\n\n%s", len(orders), strings.Join(parts, "\n\n")))
}

func renderReport(st models.Stats, sessions int) string {
	var sb strings.Builder
	sb.WriteString("📊 RELATÓRIO\n\n")
	fmt.Fprintf(&sb, "Pedidos: %d (hoje: %d)\n", st.TotalOrders, st.TodayOrders)
	fmt.Fprintf(&sb, "Faturamento (com entrega): %s\n", services.FormatBRL(st.Revenue))
	fmt.Fprintf(&sb, "Ticket médio (com entrega): %s\n", services.FormatBRL(st.AverageTicket))
	sb.WriteString("\nPor status:\n")
	for _, s := range catalog.Statuses() {
		if n := st.ByStatus[s.Key]; n > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", catalog.StatusLabel(s.Key), n)
		}
	}
	if len(st.ByFlavor) > 0 {
		sb.WriteString("\nPor sabor:\n")
		for _, f := range catalog.Flavors() {
			if n := st.ByFlavor[f.Key]; n > 0 {
				fmt.Fprintf(&sb, "  %s: %d\n", f.Name, n)
			}
		}
		other := 0
		for k, n := range st.ByFlavor {
			if _, ok := catalog.LookupFlavor(k); !ok {
				other += n
			}
		}
		if other > 0 {
			fmt.Fprintf(&sb, "  Outros: %d\n", other)
		}
	}
	fmt.Fprintf(&sb, "\nAvisos ativos: %d\n", st.ActiveAnnouncements)
	fmt.Fprintf(&sb, "Pedidos em andamento no chat: %d\n", sessions)
	fmt.Fprintf(&sb, "Banco primário: %s", st.Primary)
	return sb.String()
}

// matchStatus accepts a status key or its display name.
func matchStatus(text string) (string, bool) {
	folded := catalog.Fold(text)
	for _, s := range catalog.Statuses() {
		if folded == s.Key || folded == catalog.Fold(s.Name) || folded == catalog.Fold(catalog.StatusLabel(s.Key)) {
			return s.Key, true
		}
	}
	return "", false
}

func nextStatuses(from string) []string {
	var out []string
	for _, s := range catalog.Statuses() {
		if s.Key != catalog.StatusCancelled && services.ValidStatusTransition(from, s.Key) {
			out = append(out, s.Key)
		}
	}
	return out
}

func statusKeyList() []string {
	statuses := catalog.Statuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.Key)
	}
	return out
}

func statusKeys() string {
	return strings.Join(statusKeyList(), ", ")
}
