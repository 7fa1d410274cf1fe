// Package kanban holds the pure transforms over a board's data. Every
// function takes the current BoardData by value and returns a new one; the
// input is never modified.
package kanban

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/models"
)

// now is swapped by tests.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Now returns the current time at the precision stored in board documents.
func Now() time.Time {
	return now()
}

// NewBoardData returns the content of a freshly created board: three
// columns and no cards.
func NewBoardData() models.BoardData {
	cols := []models.Column{
		{ID: "col-1", Title: "To do", CardIDs: []string{}},
		{ID: "col-2", Title: "In progress", CardIDs: []string{}},
		{ID: "col-3", Title: "Done", CardIDs: []string{}},
	}
	data := models.BoardData{
		Columns:     make(map[string]models.Column, len(cols)),
		Cards:       map[string]models.Card{},
		ColumnOrder: make([]string, 0, len(cols)),
	}
	for _, c := range cols {
		data.Columns[c.ID] = c
		data.ColumnOrder = append(data.ColumnOrder, c.ID)
	}
	return data
}

// DefaultLabels seeds the label list of a new board.
func DefaultLabels() []models.Label {
	return []models.Label{
		{ID: "label-1", Name: "Important", Color: "#ef4444"},
		{ID: "label-2", Name: "In progress", Color: "#3b82f6"},
		{ID: "label-3", Name: "Done", Color: "#10b981"},
		{ID: "label-4", Name: "Blocker", Color: "#f59e0b"},
	}
}

// AddColumn appends a new column to the right of the board.
func AddColumn(data models.BoardData, title string) (models.BoardData, models.Column, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return data, models.Column{}, ErrEmptyText
	}
	colID, err := id.Generate("col")
	if err != nil {
		return data, models.Column{}, err
	}
	out := data.Clone()
	col := models.Column{ID: colID, Title: title, CardIDs: []string{}}
	out.Columns[colID] = col
	out.ColumnOrder = append(out.ColumnOrder, colID)
	return out, col, nil
}

func RenameColumn(data models.BoardData, columnID, title string) (models.BoardData, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return data, ErrEmptyText
	}
	col, ok := data.Columns[columnID]
	if !ok {
		return data, ErrColumnNotFound
	}
	if col.Title == title {
		return data, ErrNoChange
	}
	out := data.Clone()
	col = out.Columns[columnID]
	col.Title = title
	out.Columns[columnID] = col
	return out, nil
}

// DeleteColumn removes the column, its id from ColumnOrder and every card
// that no other column still lists.
func DeleteColumn(data models.BoardData, columnID string) (models.BoardData, error) {
	col, ok := data.Columns[columnID]
	if !ok {
		return data, ErrColumnNotFound
	}
	out := data.Clone()
	delete(out.Columns, columnID)
	out.ColumnOrder = slices.DeleteFunc(out.ColumnOrder, func(id string) bool { return id == columnID })
	for _, cardID := range col.CardIDs {
		if _, stillListed := out.ColumnOf(cardID); !stillListed {
			delete(out.Cards, cardID)
		}
	}
	return out, nil
}

// Validate checks the structural invariants of a board's data.
func Validate(data models.BoardData) error {
	if len(data.ColumnOrder) != len(data.Columns) {
		return fmt.Errorf("%w: columnOrder has %d ids for %d columns", ErrInvalidBoard, len(data.ColumnOrder), len(data.Columns))
	}
	seenCol := make(map[string]bool, len(data.ColumnOrder))
	for _, colID := range data.ColumnOrder {
		if seenCol[colID] {
			return fmt.Errorf("%w: column %s listed twice", ErrInvalidBoard, colID)
		}
		if _, ok := data.Columns[colID]; !ok {
			return fmt.Errorf("%w: column %s missing", ErrInvalidBoard, colID)
		}
		seenCol[colID] = true
	}
	owner := make(map[string]string, len(data.Cards))
	for colID, col := range data.Columns {
		if col.ID != colID {
			return fmt.Errorf("%w: column key %s holds id %s", ErrInvalidBoard, colID, col.ID)
		}
		for _, cardID := range col.CardIDs {
			if _, ok := data.Cards[cardID]; !ok {
				return fmt.Errorf("%w: card %s in column %s has no record", ErrInvalidBoard, cardID, colID)
			}
			if prev, dup := owner[cardID]; dup {
				return fmt.Errorf("%w: card %s listed in %s and %s", ErrInvalidBoard, cardID, prev, colID)
			}
			owner[cardID] = colID
		}
	}
	return nil
}
