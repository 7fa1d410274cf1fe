package kanban

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/taskflow-api/internal/models"
)

func TestHash_StableAcrossRoundTrips(t *testing.T) {
	data, cardID := withCard(t)
	data, cl, err := AddChecklist(data, cardID, "todo")
	require.NoError(t, err)
	due := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err = SetDueDate(data, cardID, &due)
	require.NoError(t, err)

	// What a backend may hand back: nil lists and a non-UTC zone.
	rt := data.Clone()
	col := rt.Columns["col-2"]
	col.CardIDs = nil
	rt.Columns["col-2"] = col
	card := rt.Cards[cardID]
	card.Checklists[0].Items = nil
	local := card.DueDate.In(time.FixedZone("Y", -7200)).Add(300 * time.Microsecond)
	card.DueDate = &local
	rt.Cards[cardID] = card

	assert.Equal(t, Hash(data), Hash(rt))
	assert.Empty(t, data.Cards[cardID].Checklists[0].Items, "normalize must not touch its input")
	assert.Equal(t, cl.ID, rt.Cards[cardID].Checklists[0].ID)
}

func TestHash_DiffersOnContent(t *testing.T) {
	data, cardID := withCard(t)
	changed, err := SetPriority(data, cardID, models.PriorityLow)
	require.NoError(t, err)

	assert.NotEqual(t, Hash(data), Hash(changed))

	reordered, err := Reorder(NewBoardData(), Move{Kind: MoveColumn, SourceIndex: 0, DestIndex: 2})
	require.NoError(t, err)
	assert.NotEqual(t, Hash(NewBoardData()), Hash(reordered))
}
