package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one persisted pizza order. Code is assigned by the gateway at save time.
type Order struct {
	Code         string          `json:"order_code"`
	ChatID       int64           `json:"user_id"`
	CustomerName string          `json:"nome"`
	Pizza        string          `json:"pizza"`
	Size         string          `json:"tamanho"`
	Address      string          `json:"endereco"`
	Phone        string          `json:"telefone"`
	Age          string          `json:"idade"`
	Payment      string          `json:"pagamento"`
	Notes        string          `json:"observacoes"`
	Status       string          `json:"status"`
	Price        decimal.Decimal `json:"preco"`
	DeliveryFee  decimal.Decimal `json:"taxa_entrega"`
	Source       string          `json:"fonte"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Total is price plus delivery fee.
func (o *Order) Total() decimal.Decimal {
	return o.Price.Add(o.DeliveryFee)
}

// OrderFields are the values collected by the intake conversation.
type OrderFields struct {
	Name    string
	Pizza   string
	Size    string
	Address string
	Phone   string
	Age     string
	Payment string
	Notes   string
}

// OrderFilter holds exact-match filters, AND-combined. Empty fields are ignored.
type OrderFilter struct {
	Code   string
	ChatID int64
	Status string
}

// Stats is the aggregate report computed from the stored orders. Revenue and
// AverageTicket include the delivery fee (Order.Total).
type Stats struct {
	TotalOrders         int
	TodayOrders         int
	ByStatus            map[string]int
	ByFlavor            map[string]int
	Revenue             decimal.Decimal
	AverageTicket       decimal.Decimal
	ActiveAnnouncements int
	Primary             string
}
