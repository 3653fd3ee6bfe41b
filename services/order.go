package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
)

// ErrMissingField is returned by BuildOrder when a required field is empty.
var ErrMissingField = errors.New("missing required order field")

// Price returns round(base price × size multiplier, 2). An unknown flavor costs
// catalog.DefaultFlavorPrice regardless of size.
func Price(flavorKey, sizeKey string) decimal.Decimal {
	f, ok := catalog.LookupFlavor(flavorKey)
	if !ok {
		return catalog.DefaultFlavorPrice
	}
	s := catalog.LookupSize(sizeKey)
	return f.BasePrice.Mul(s.Multiplier).Round(2)
}

// BuildOrder turns the collected fields into a pending order. The code is left
// empty; the gateway assigns it when saving.
func BuildOrder(chatID int64, f models.OrderFields, deliveryFee decimal.Decimal, source string, now time.Time) (*models.Order, error) {
	required := []struct{ name, value string }{
		{"nome", f.Name},
		{"pizza", f.Pizza},
		{"endereco", f.Address},
		{"pagamento", f.Payment},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, r.name)
		}
	}

	size := catalog.SizeByName(f.Size)
	now = now.UTC()
	return &models.Order{
		ChatID:       chatID,
		CustomerName: strings.TrimSpace(f.Name),
		Pizza:        strings.TrimSpace(f.Pizza),
		Size:         size.Name,
		Address:      strings.TrimSpace(f.Address),
		Phone:        f.Phone,
		Age:          f.Age,
		Payment:      strings.TrimSpace(f.Payment),
		Notes:        f.Notes,
		Status:       catalog.StatusPending,
		Price:        Price(catalog.FlavorKey(f.Pizza), size.Key),
		DeliveryFee:  deliveryFee,
		Source:       source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FormatBRL renders an amount as "R$ 52,00".
func FormatBRL(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// RenderSummary formats the confirmation sent to the customer. It only reads
// the stored fields; nothing is recomputed except the price + fee total.
func RenderSummary(o *models.Order) string {
	var sb strings.Builder
	sb.WriteString("✅ PEDIDO CONFIRMADO!\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "🔖 Código: %s\n", o.Code)
	fmt.Fprintf(&sb, "🍕 Pizza: %s (%s)\n", o.Pizza, o.Size)
	fmt.Fprintf(&sb, "👤 Cliente: %s\n", o.CustomerName)
	fmt.Fprintf(&sb, "📞 Telefone: %s\n", o.Phone)
	fmt.Fprintf(&sb, "🏠 Endereço: %s\n", o.Address)
	fmt.Fprintf(&sb, "💳 Pagamento: %s\n", o.Payment)
	if o.Notes != "" {
		fmt.Fprintf(&sb, "📝 Observações: %s\n", o.Notes)
	}
	sb.WriteString("━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "Pizza: %s\n", FormatBRL(o.Price))
	fmt.Fprintf(&sb, "Entrega: %s\n", FormatBRL(o.DeliveryFee))
	fmt.Fprintf(&sb, "💰 Total: %s\n", FormatBRL(o.Total()))
	fmt.Fprintf(&sb, "Status: %s", catalog.StatusLabel(o.Status))
	return sb.String()
}

// RenderAdminOrder is the compact card shown to the admin for listings and new-order alerts.
func RenderAdminOrder(o *models.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔖 %s — %s\n", o.Code, catalog.StatusLabel(o.Status))
	fmt.Fprintf(&sb, "🍕 %s (%s) — %s\n", o.Pizza, o.Size, FormatBRL(o.Total()))
	fmt.Fprintf(&sb, "👤 %s, %s anos — %s\n", o.CustomerName, o.Age, o.Phone)
	fmt.Fprintf(&sb, "🏠 %s\n", o.Address)
	fmt.Fprintf(&sb, "💳 %s", o.Payment)
	if o.Notes != "" {
		fmt.Fprintf(&sb, "\n📝 %s", o.Notes)
	}
	fmt.Fprintf(&sb, "\n🕐 %s (%s)", o.CreatedAt.Local().Format("02/01 15:04"), o.Source)
	return sb.String()
}
