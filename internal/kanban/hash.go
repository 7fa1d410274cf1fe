package kanban

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/arnold/taskflow-api/internal/models"
)

// Hash returns a content hash of data. Two values that differ only in how a
// backend round-trips them (nil versus empty lists, time zone, sub-millisecond
// precision) hash the same.
func Hash(data models.BoardData) uint64 {
	b, err := json.Marshal(normalize(data))
	if err != nil {
		// BoardData holds only marshalable types.
		panic(err)
	}
	return xxhash.Sum64(b)
}

func normalize(data models.BoardData) models.BoardData {
	out := data.Clone()
	for colID, col := range out.Columns {
		if col.CardIDs == nil {
			col.CardIDs = []string{}
		}
		out.Columns[colID] = col
	}
	for cardID, c := range out.Cards {
		c.CreatedAt = normTime(c.CreatedAt)
		c.UpdatedAt = normTime(c.UpdatedAt)
		if c.DueDate != nil {
			d := normTime(*c.DueDate)
			c.DueDate = &d
		}
		if c.CompletedAt != nil {
			d := normTime(*c.CompletedAt)
			c.CompletedAt = &d
		}
		for i := range c.Comments {
			c.Comments[i].CreatedAt = normTime(c.Comments[i].CreatedAt)
		}
		for i := range c.Checklists {
			cl := &c.Checklists[i]
			cl.CreatedAt = normTime(cl.CreatedAt)
			if cl.Items == nil {
				cl.Items = []models.ChecklistItem{}
			}
			for j := range cl.Items {
				cl.Items[j].CreatedAt = normTime(cl.Items[j].CreatedAt)
			}
		}
		out.Cards[cardID] = c
	}
	return out
}

func normTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
