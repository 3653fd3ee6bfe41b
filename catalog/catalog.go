// Package catalog holds the static menu tables: flavors, sizes and order statuses.
package catalog

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Flavor struct {
	Key         string
	Name        string
	Description string
	Emoji       string
	Sweet       bool
	BasePrice   decimal.Decimal
}

type Size struct {
	Key        string
	Name       string
	Multiplier decimal.Decimal
	Diameter   string
}

type Status struct {
	Key   string
	Name  string
	Glyph string
}

const (
	StatusPending   = "pendente"
	StatusPreparing = "preparando"
	StatusOnTheWay  = "saiu_entrega"
	StatusDelivered = "entregue"
	StatusCancelled = "cancelado"
)

// DefaultSizeKey is used whenever a size cannot be matched ("large").
const DefaultSizeKey = "grande"

// DefaultFlavorPrice is charged for a flavor key the catalog does not know, whatever the size.
var DefaultFlavorPrice = decimal.RequireFromString("40.00")

var flavors = []Flavor{
	{Key: "calabresa", Name: "Calabresa", Description: "Calabresa fatiada, cebola e azeitonas", Emoji: "🌶️", BasePrice: decimal.RequireFromString("40.00")},
	{Key: "portuguesa", Name: "Portuguesa", Description: "Presunto, ovos, cebola, ervilha e mussarela", Emoji: "🥚", BasePrice: decimal.RequireFromString("45.00")},
	{Key: "marguerita", Name: "Marguerita", Description: "Mussarela, tomate e manjericão", Emoji: "🍅", BasePrice: decimal.RequireFromString("38.00")},
	{Key: "frango", Name: "Frango", Description: "Frango desfiado com catupiry", Emoji: "🍗", BasePrice: decimal.RequireFromString("42.00")},
	{Key: "quatroqueijos", Name: "Quatro Queijos", Description: "Mussarela, provolone, parmesão e gorgonzola", Emoji: "🧀", BasePrice: decimal.RequireFromString("48.00")},
	{Key: "chocolate", Name: "Chocolate", Description: "Chocolate ao leite com granulado", Emoji: "🍫", Sweet: true, BasePrice: decimal.RequireFromString("35.00")},
	{Key: "romeuejulieta", Name: "Romeu e Julieta", Description: "Goiabada com queijo", Emoji: "❤️", Sweet: true, BasePrice: decimal.RequireFromString("35.00")},
}

var sizes = []Size{
	{Key: "broto", Name: "Broto", Multiplier: decimal.RequireFromString("0.6"), Diameter: "25cm"},
	{Key: "media", Name: "Média", Multiplier: decimal.RequireFromString("0.8"), Diameter: "30cm"},
	{Key: "grande", Name: "Grande", Multiplier: decimal.RequireFromString("1.0"), Diameter: "35cm"},
	{Key: "familia", Name: "Família", Multiplier: decimal.RequireFromString("1.3"), Diameter: "40cm"},
}

var statuses = []Status{
	{Key: StatusPending, Name: "Pendente", Glyph: "🕐"},
	{Key: StatusPreparing, Name: "Preparando", Glyph: "👨‍🍳"},
	{Key: StatusOnTheWay, Name: "Saiu para entrega", Glyph: "🛵"},
	{Key: StatusDelivered, Name: "Entregue", Glyph: "✅"},
	{Key: StatusCancelled, Name: "Cancelado", Glyph: "❌"},
}

// Flavors returns the flavor table in menu order.
func Flavors() []Flavor {
	out := make([]Flavor, len(flavors))
	copy(out, flavors)
	return out
}

func Sizes() []Size {
	out := make([]Size, len(sizes))
	copy(out, sizes)
	return out
}

func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// LookupFlavor finds a flavor by key (case-insensitive).
func LookupFlavor(key string) (Flavor, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range flavors {
		if f.Key == key {
			return f, true
		}
	}
	return Flavor{}, false
}

// LookupSize finds a size by key; unknown keys resolve to the default size.
func LookupSize(key string) Size {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range sizes {
		if s.Key == key {
			return s
		}
	}
	return defaultSize()
}

func LookupStatus(key string) (Status, bool) {
	for _, s := range statuses {
		if s.Key == key {
			return s, true
		}
	}
	return Status{}, false
}

func ValidStatus(key string) bool {
	_, ok := LookupStatus(key)
	return ok
}

// StatusLabel renders "glyph Name" or the raw key when unknown.
func StatusLabel(key string) string {
	if s, ok := LookupStatus(key); ok {
		return s.Glyph + " " + s.Name
	}
	return key
}

func defaultSize() Size {
	for _, s := range sizes {
		if s.Key == DefaultSizeKey {
			return s
		}
	}
	return sizes[len(sizes)-1]
}

// MatchSize resolves free text (a keyboard label or typed reply) to a size.
// Matching is a case- and accent-insensitive substring test against size names
// and keys; anything unmatched is the default size.
func MatchSize(text string) Size {
	folded := Fold(text)
	if folded == "" {
		return defaultSize()
	}
	for _, s := range sizes {
		if strings.Contains(folded, Fold(s.Name)) || strings.Contains(folded, s.Key) {
			return s
		}
	}
	return defaultSize()
}

// SizeByName resolves a stored size display name back to its size.
func SizeByName(name string) Size {
	folded := Fold(name)
	for _, s := range sizes {
		if Fold(s.Name) == folded || s.Key == folded {
			return s
		}
	}
	return defaultSize()
}

// FlavorKey derives the flavor key from a free-text pizza name. The compact
// accent-folded name is tried first ("Quatro Queijos" -> "quatroqueijos"),
// then the first word.
func FlavorKey(pizza string) string {
	folded := Fold(pizza)
	compact := strings.ReplaceAll(folded, " ", "")
	if _, ok := LookupFlavor(compact); ok {
		return compact
	}
	fields := strings.Fields(folded)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Fold lowercases and strips diacritics: "Família" -> "familia".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
