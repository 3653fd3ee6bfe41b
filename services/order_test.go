package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
)

func TestPrice_AllCatalogPairs(t *testing.T) {
	for _, f := range catalog.Flavors() {
		for _, s := range catalog.Sizes() {
			want := f.BasePrice.Mul(s.Multiplier).Round(2)
			got := Price(f.Key, s.Key)
			if !got.Equal(want) {
				t.Errorf("Price(%q, %q) = %s, want %s", f.Key, s.Key, got, want)
			}
			if !Price(f.Key, s.Key).Equal(got) {
				t.Errorf("Price(%q, %q) not deterministic", f.Key, s.Key)
			}
		}
	}
}

func TestPrice_UnknownFlavorIgnoresSize(t *testing.T) {
	for _, s := range catalog.Sizes() {
		got := Price("abacaxi", s.Key)
		if !got.Equal(catalog.DefaultFlavorPrice) {
			t.Errorf("Price(abacaxi, %q) = %s, want %s", s.Key, got, catalog.DefaultFlavorPrice)
		}
	}
}

func TestPrice_CalabresaFamilia(t *testing.T) {
	assert.Equal(t, "52.00", Price("calabresa", "familia").StringFixed(2))
}

func TestBuildOrder(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	fee := decimal.RequireFromString("5.00")
	o, err := BuildOrder(77, models.OrderFields{
		Name:    "Maria Silva",
		Pizza:   "Calabresa",
		Size:    "Família",
		Address: "Rua das Flores, 123, Centro",
		Phone:   "(11) 98765-4321",
		Age:     "30",
		Payment: "Pix",
	}, fee, "remote", now)
	require.NoError(t, err)

	assert.Equal(t, int64(77), o.ChatID)
	assert.Equal(t, "Família", o.Size)
	assert.Equal(t, "52.00", o.Price.StringFixed(2))
	assert.Equal(t, catalog.StatusPending, o.Status)
	assert.Equal(t, "remote", o.Source)
	assert.Equal(t, now, o.CreatedAt)
	assert.Empty(t, o.Code)
	assert.Equal(t, "57.00", o.Total().StringFixed(2))
}

func TestBuildOrder_MissingFields(t *testing.T) {
	base := models.OrderFields{Name: "Ana", Pizza: "Frango", Address: "Rua A, 10, Centro", Payment: "Dinheiro"}
	cases := map[string]func(f *models.OrderFields){
		"name":    func(f *models.OrderFields) { f.Name = "" },
		"pizza":   func(f *models.OrderFields) { f.Pizza = " " },
		"address": func(f *models.OrderFields) { f.Address = "" },
		"payment": func(f *models.OrderFields) { f.Payment = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := base
			mutate(&f)
			_, err := BuildOrder(1, f, decimal.Zero, "local", time.Now())
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("err = %v, want ErrMissingField", err)
			}
		})
	}
}

func TestRenderSummary_UsesStoredFields(t *testing.T) {
	o := &models.Order{
		Code:         "PZ261016120000-ABC123",
		CustomerName: "Maria",
		Pizza:        "Calabresa",
		Size:         "Família",
		Address:      "Rua das Flores, 123",
		Phone:        "(11) 98765-4321",
		Payment:      "Pix",
		Notes:        "sem cebola",
		Status:       catalog.StatusPending,
		// deliberately not the catalog price: the summary must not recompute it
		Price:       decimal.RequireFromString("99.90"),
		DeliveryFee: decimal.RequireFromString("5.00"),
	}
	s := RenderSummary(o)
	for _, want := range []string{"PZ261016120000-ABC123", "Calabresa (Família)", "R$ 99,90", "R$ 5,00", "R$ 104,90", "sem cebola", "Pendente"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 52,00", FormatBRL(decimal.RequireFromString("52")))
	assert.Equal(t, "R$ 0,50", FormatBRL(decimal.RequireFromString("0.5")))
}

func TestNewOrderCode_NoCollisions(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		c := NewOrderCode(now)
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate code %s after %d generations", c, i)
		}
		seen[c] = struct{}{}
	}
}

func TestNewOrderCode_Format(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 5, 7, 0, time.UTC)
	c := NewCodeGenerator().Next(now)
	require.True(t, strings.HasPrefix(c, "PZ261016090507-"), c)
	suffix := strings.TrimPrefix(c, "PZ261016090507-")
	assert.Len(t, suffix, 6)
	assert.Equal(t, strings.ToUpper(suffix), suffix)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"11987654321", "(11) 98765-4321", true},
		{"(11) 98765-4321", "(11) 98765-4321", true},
		{"1133334444", "(11) 3333-4444", true},
		{"+55 11 98765-4321", "", false},
		{"123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{catalog.StatusPending, catalog.StatusPreparing, true},
		{catalog.StatusPending, catalog.StatusOnTheWay, false},
		{catalog.StatusPending, catalog.StatusCancelled, true},
		{catalog.StatusPreparing, catalog.StatusOnTheWay, true},
		{catalog.StatusPreparing, catalog.StatusPending, false},
		{catalog.StatusOnTheWay, catalog.StatusDelivered, true},
		{catalog.StatusOnTheWay, catalog.StatusCancelled, true},
		{catalog.StatusDelivered, catalog.StatusCancelled, false},
		{catalog.StatusCancelled, catalog.StatusPending, false},
		{catalog.StatusPending, catalog.StatusPending, false},
		{"", catalog.StatusPending, false},
		{catalog.StatusPending, "confirmed", false},
	}
	for _, tt := range tests {
		got := ValidStatusTransition(tt.from, tt.to)
		if got != tt.want {
			t.Errorf("ValidStatusTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCustomerMessageForOrderStatus(t *testing.T) {
	o := &models.Order{Code: "PZ1-AAAAAA", Price: decimal.RequireFromString("40"), DeliveryFee: decimal.RequireFromString("5")}
	m := CustomerMessageForOrderStatus(o, catalog.StatusOnTheWay)
	if !strings.Contains(m, "PZ1-AAAAAA") || !strings.Contains(m, "R$ 45,00") {
		t.Errorf("message should contain code and total: %s", m)
	}
	m = CustomerMessageForOrderStatus(o, catalog.StatusCancelled)
	if !strings.Contains(m, "cancelado") {
		t.Errorf("cancel message should say cancelado: %s", m)
	}
}
