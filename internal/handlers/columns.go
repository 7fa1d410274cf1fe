package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
)

func (h *Handler) CreateColumn(c *fiber.Ctx) error {
	var req models.CreateColumnRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	var col models.Column
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, created, err := kanban.AddColumn(b.Data, req.Title)
		col = created
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     res.After.ID,
		Type:        models.ActivityColumnCreated,
		Description: fmt.Sprintf("created column %q", col.Title),
		Metadata:    map[string]any{"columnId": col.ID, "columnTitle": col.Title},
	})
	return c.Status(fiber.StatusCreated).JSON(col)
}

func (h *Handler) RenameColumn(c *fiber.Ctx) error {
	var req models.RenameColumnRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	columnID := c.Params("columnId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.RenameColumn(b.Data, columnID, req.Title)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res.After.Data.Columns[columnID])
}

// DeleteColumn removes the column and every card in it.
func (h *Handler) DeleteColumn(c *fiber.Ctx) error {
	columnID := c.Params("columnId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.DeleteColumn(b.Data, columnID)
	})
	if err != nil {
		return respondError(c, err)
	}

	col := res.Before.Data.Columns[columnID]
	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     res.After.ID,
		Type:        models.ActivityColumnDeleted,
		Description: fmt.Sprintf("deleted column %q", col.Title),
		OldValue:    map[string]any{"columnId": col.ID, "columnTitle": col.Title, "cardCount": len(col.CardIDs)},
	})
	return c.JSON(fiber.Map{"success": true})
}

// MoveItem applies a drag-and-drop move. Moving an item onto its own
// position is accepted and changes nothing.
func (h *Handler) MoveItem(c *fiber.Ctx) error {
	var req models.MoveRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	move := kanban.MoveFromRequest(req)
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.Reorder(b.Data, move)
	})
	if err != nil {
		return respondError(c, err)
	}

	if res.Changed && move.Kind == kanban.MoveCard && move.SourceColumnID != move.DestColumnID {
		from := res.Before.Data.Columns[move.SourceColumnID]
		to := res.Before.Data.Columns[move.DestColumnID]
		card := res.Before.Data.Cards[from.CardIDs[move.SourceIndex]]
		h.recorder.Activity(actor(c), services.ActivityEntry{
			BoardID:     res.After.ID,
			CardID:      card.ID,
			Type:        models.ActivityCardMoved,
			Description: fmt.Sprintf("moved card %q from %q to %q", kanban.Excerpt(card.Content), from.Title, to.Title),
			OldValue:    map[string]any{"fromColumn": from.ID, "fromColumnTitle": from.Title},
			NewValue:    map[string]any{"toColumn": to.ID, "toColumnTitle": to.Title},
		})
	}
	return c.JSON(res.After.Data)
}
