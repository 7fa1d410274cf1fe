package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
)

func (h *Handler) AddChecklist(c *fiber.Ctx) error {
	var req models.CreateChecklistRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	cardID := c.Params("cardId")
	var cl models.Checklist
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, added, err := kanban.AddChecklist(b.Data, cardID, req.Title)
		cl = added
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityChecklistAdded,
		Description: fmt.Sprintf("added checklist %q to %q", cl.Title, kanban.Excerpt(res.After.Data.Cards[cardID].Content)),
		Metadata:    map[string]any{"checklistId": cl.ID},
	})
	return c.Status(fiber.StatusCreated).JSON(cl)
}

func (h *Handler) DeleteChecklist(c *fiber.Ctx) error {
	cardID, checklistID := c.Params("cardId"), c.Params("checklistId")
	_, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.DeleteChecklist(b.Data, cardID, checklistID)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) AddChecklistItem(c *fiber.Ctx) error {
	var req models.CreateChecklistItemRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	cardID, checklistID := c.Params("cardId"), c.Params("checklistId")
	var item models.ChecklistItem
	_, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, added, err := kanban.AddChecklistItem(b.Data, cardID, checklistID, req.Text)
		item = added
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// ToggleChecklistItem flips an item. Completing one is logged.
func (h *Handler) ToggleChecklistItem(c *fiber.Ctx) error {
	cardID, checklistID, itemID := c.Params("cardId"), c.Params("checklistId"), c.Params("itemId")
	var item models.ChecklistItem
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, toggled, err := kanban.ToggleChecklistItem(b.Data, cardID, checklistID, itemID)
		item = toggled
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	if item.Completed {
		h.recorder.Activity(actor(c), services.ActivityEntry{
			BoardID:     res.After.ID,
			CardID:      cardID,
			Type:        models.ActivityChecklistItemCompleted,
			Description: fmt.Sprintf("completed %q on %q", kanban.Excerpt(item.Text), kanban.Excerpt(res.After.Data.Cards[cardID].Content)),
			Metadata:    map[string]any{"checklistId": checklistID, "itemId": itemID},
		})
	}
	return c.JSON(item)
}

func (h *Handler) DeleteChecklistItem(c *fiber.Ctx) error {
	cardID, checklistID, itemID := c.Params("cardId"), c.Params("checklistId"), c.Params("itemId")
	_, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.DeleteChecklistItem(b.Data, cardID, checklistID, itemID)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
