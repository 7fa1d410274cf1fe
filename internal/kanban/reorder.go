package kanban

import (
	"fmt"
	"slices"

	"github.com/arnold/taskflow-api/internal/models"
)

type MoveKind string

const (
	MoveColumn MoveKind = "column"
	MoveCard   MoveKind = "card"
)

// Move is a drag-and-drop instruction. Column moves use ColumnID and the
// indexes into ColumnOrder; card moves use CardID, the two column ids and
// the indexes into those columns' CardIDs.
type Move struct {
	Kind           MoveKind
	ColumnID       string
	CardID         string
	SourceColumnID string
	SourceIndex    int
	DestColumnID   string
	DestIndex      int
}

// IsNoop reports whether source and destination are the same location.
func (m Move) IsNoop() bool {
	if m.Kind == MoveColumn {
		return m.SourceIndex == m.DestIndex
	}
	return m.SourceColumnID == m.DestColumnID && m.SourceIndex == m.DestIndex
}

// MoveFromRequest converts the API payload.
func MoveFromRequest(r models.MoveRequest) Move {
	return Move{
		Kind:           MoveKind(r.Type),
		ColumnID:       r.ColumnID,
		CardID:         r.CardID,
		SourceColumnID: r.SourceColumnID,
		SourceIndex:    r.SourceIndex,
		DestColumnID:   r.DestColumnID,
		DestIndex:      r.DestIndex,
	}
}

// Reorder applies m to data. A no-op move returns data itself together with
// ErrNoChange.
func Reorder(data models.BoardData, m Move) (models.BoardData, error) {
	switch m.Kind {
	case MoveColumn:
		return moveColumn(data, m)
	case MoveCard:
		return moveCard(data, m)
	}
	return data, fmt.Errorf("%w: unknown kind %q", ErrInvalidMove, m.Kind)
}

func moveColumn(data models.BoardData, m Move) (models.BoardData, error) {
	n := len(data.ColumnOrder)
	if m.SourceIndex < 0 || m.SourceIndex >= n {
		return data, fmt.Errorf("%w: source index %d out of range", ErrInvalidMove, m.SourceIndex)
	}
	if m.ColumnID != "" && data.ColumnOrder[m.SourceIndex] != m.ColumnID {
		return data, fmt.Errorf("%w: column %s is not at index %d", ErrInvalidMove, m.ColumnID, m.SourceIndex)
	}
	if m.DestIndex < 0 || m.DestIndex >= n {
		return data, fmt.Errorf("%w: destination index %d out of range", ErrInvalidMove, m.DestIndex)
	}
	if m.IsNoop() {
		return data, ErrNoChange
	}

	out := data.Clone()
	out.ColumnOrder = splice(out.ColumnOrder, m.SourceIndex, m.DestIndex)
	return out, nil
}

func moveCard(data models.BoardData, m Move) (models.BoardData, error) {
	src, ok := data.Columns[m.SourceColumnID]
	if !ok {
		return data, fmt.Errorf("%w: source %s", ErrColumnNotFound, m.SourceColumnID)
	}
	dst, ok := data.Columns[m.DestColumnID]
	if !ok {
		return data, fmt.Errorf("%w: destination %s", ErrColumnNotFound, m.DestColumnID)
	}
	if m.SourceIndex < 0 || m.SourceIndex >= len(src.CardIDs) {
		return data, fmt.Errorf("%w: source index %d out of range", ErrInvalidMove, m.SourceIndex)
	}
	if m.CardID != "" && src.CardIDs[m.SourceIndex] != m.CardID {
		return data, fmt.Errorf("%w: card %s is not at index %d", ErrInvalidMove, m.CardID, m.SourceIndex)
	}

	// Same column: the destination index addresses the list after removal.
	maxDest := len(dst.CardIDs)
	if m.SourceColumnID == m.DestColumnID {
		maxDest = len(src.CardIDs) - 1
	}
	if m.DestIndex < 0 || m.DestIndex > maxDest {
		return data, fmt.Errorf("%w: destination index %d out of range", ErrInvalidMove, m.DestIndex)
	}
	if m.IsNoop() {
		return data, ErrNoChange
	}

	out := data.Clone()
	if m.SourceColumnID == m.DestColumnID {
		col := out.Columns[m.SourceColumnID]
		col.CardIDs = splice(col.CardIDs, m.SourceIndex, m.DestIndex)
		out.Columns[col.ID] = col
		return out, nil
	}

	from := out.Columns[m.SourceColumnID]
	to := out.Columns[m.DestColumnID]
	cardID := from.CardIDs[m.SourceIndex]
	from.CardIDs = slices.Delete(from.CardIDs, m.SourceIndex, m.SourceIndex+1)
	to.CardIDs = slices.Insert(to.CardIDs, m.DestIndex, cardID)
	out.Columns[from.ID] = from
	out.Columns[to.ID] = to
	return out, nil
}

// splice removes the element at from and re-inserts it at to.
func splice(ids []string, from, to int) []string {
	v := ids[from]
	ids = slices.Delete(ids, from, from+1)
	return slices.Insert(ids, to, v)
}
