package kanban

import (
	"slices"
	"strings"
	"time"

	"github.com/arnold/taskflow-api/internal/models"
)

type DueFilter string

const (
	DueAny      DueFilter = ""
	DueAll      DueFilter = "all"
	DueOverdue  DueFilter = "overdue"
	DueToday    DueFilter = "today"
	DueThisWeek DueFilter = "thisWeek"
)

// Filter selects cards. Zero fields match everything except completed cards,
// which are hidden unless ShowCompleted is set.
type Filter struct {
	Query         string
	Assignee      string
	Priority      models.Priority
	Labels        []string
	Due           DueFilter
	ShowCompleted bool
	// Location defines "today" for the day-bucket due filters. Nil means UTC.
	Location *time.Location
}

// ColumnCards is one column and the cards of it that passed the filter.
type ColumnCards struct {
	Column models.Column `json:"column"`
	Cards  []models.Card `json:"cards"`
}

// IsOverdue compares instants only; a due date in the past is overdue
// whatever the viewer's time zone.
func IsOverdue(c models.Card, at time.Time) bool {
	return c.DueDate != nil && c.DueDate.Before(at)
}

// Match reports whether c passes f at instant at.
func (f Filter) Match(c models.Card, at time.Time) bool {
	if !f.ShowCompleted && c.Completed {
		return false
	}
	if q := strings.ToLower(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(c.Content), q) && !strings.Contains(strings.ToLower(c.Description), q) {
			return false
		}
	}
	if f.Assignee != "" && c.AssignedTo != f.Assignee {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if len(f.Labels) > 0 && !slices.ContainsFunc(f.Labels, c.HasLabel) {
		return false
	}
	if f.Due == DueAny || f.Due == DueAll {
		return true
	}
	if c.DueDate == nil {
		return false
	}
	due := *c.DueDate
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	switch f.Due {
	case DueOverdue:
		return due.Before(at)
	case DueToday:
		return !due.Before(dayStart) && due.Before(dayEnd)
	case DueThisWeek:
		return !due.Before(dayStart) && due.Before(dayEnd.AddDate(0, 0, 7))
	}
	return true
}

// FilterCards returns the matching cards grouped by column, columns in
// columnOrder order and cards in cardIds order.
func FilterCards(data models.BoardData, f Filter, at time.Time) []ColumnCards {
	out := make([]ColumnCards, 0, len(data.ColumnOrder))
	for _, colID := range data.ColumnOrder {
		col := data.Columns[colID]
		cc := ColumnCards{Column: col, Cards: []models.Card{}}
		for _, cardID := range col.CardIDs {
			if card, ok := data.Cards[cardID]; ok && f.Match(card, at) {
				cc.Cards = append(cc.Cards, card)
			}
		}
		out = append(out, cc)
	}
	return out
}
