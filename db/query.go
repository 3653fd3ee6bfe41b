package db

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pizzaria-telegram/models"
)

const orderColumns = `order_code, chat_id, customer_name, pizza, size, address, phone, age,
	payment, notes, status, price_cents, delivery_fee_cents, source, created_at, updated_at`

const announcementColumns = `id, title, body, category, priority, created_at, expires_at, active, views`

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func question(int) string { return "?" }

// orderWhere builds the AND-combined equality filter.
func orderWhere(f models.OrderFilter, ph placeholder) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = "+ph(len(args)))
	}
	if f.Code != "" {
		add("order_code", f.Code)
	}
	if f.ChatID != 0 {
		add("chat_id", f.ChatID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
