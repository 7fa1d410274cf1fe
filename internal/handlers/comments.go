package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
)

// AddComment adds a comment to a card. Any member may comment; the card's
// assignee is notified.
func (h *Handler) AddComment(c *fiber.Ctx) error {
	var req models.CreateCommentRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	who := actor(c)
	cardID := c.Params("cardId")
	var comment models.Comment
	res, err := h.mutate(c, false, func(b *models.Board) (models.BoardData, error) {
		data, added, err := kanban.AddComment(b.Data, cardID, who.ID, who.Email, req.Text)
		comment = added
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	h.recorder.Activity(who, services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityCommentAdded,
		Description: fmt.Sprintf("commented on %q", kanban.Excerpt(card.Content)),
		NewValue:    map[string]any{"commentId": comment.ID, "text": comment.Text},
	})
	h.recorder.Notify(who, services.NotificationEntry{
		UserID:  card.AssignedTo,
		Type:    models.NotificationComment,
		Title:   "New comment",
		Message: fmt.Sprintf("%s commented on %q: %s", displayEmail(who.Email, who.ID), kanban.Excerpt(card.Content), kanban.Excerpt(comment.Text)),
		BoardID: res.After.ID,
		CardID:  cardID,
	})
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment deletes a comment (only by the author)
func (h *Handler) DeleteComment(c *fiber.Ctx) error {
	who := actor(c)
	cardID, commentID := c.Params("cardId"), c.Params("commentId")
	var removed models.Comment
	res, err := h.mutate(c, false, func(b *models.Board) (models.BoardData, error) {
		data, cm, err := kanban.DeleteComment(b.Data, cardID, commentID, who.ID)
		removed = cm
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(who, services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityCommentDeleted,
		Description: fmt.Sprintf("deleted a comment on %q", kanban.Excerpt(res.After.Data.Cards[cardID].Content)),
		OldValue:    map[string]any{"commentId": removed.ID, "text": removed.Text},
	})
	return c.JSON(fiber.Map{"success": true})
}
