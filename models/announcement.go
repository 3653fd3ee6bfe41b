package models

import "time"

const (
	CategoryGeneral = "geral"
	CategoryPromo   = "promocao"
	CategoryWarning = "aviso"
	CategoryInfo    = "info"
)

// AnnouncementCategories lists the accepted categories in display order.
var AnnouncementCategories = []string{CategoryGeneral, CategoryPromo, CategoryWarning, CategoryInfo}

func ValidCategory(c string) bool {
	for _, v := range AnnouncementCategories {
		if v == c {
			return true
		}
	}
	return false
}

type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"titulo"`
	Body      string     `json:"mensagem"`
	Category  string     `json:"categoria"`
	Priority  int        `json:"prioridade"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expira_em,omitempty"`
	Active    bool       `json:"ativo"`
	Views     int        `json:"visualizacoes"`
}

// Visible reports whether the announcement may be shown at t.
func (a *Announcement) Visible(t time.Time) bool {
	if !a.Active {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(t)
}
