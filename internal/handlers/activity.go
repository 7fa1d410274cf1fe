package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/store"
)

// GetBoardActivity returns the board's activity log, newest first.
// ?cardId= narrows it to one card.
func (h *Handler) GetBoardActivity(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}

	q := store.ActivityQuery{
		BoardID: b.ID,
		CardID:  c.Query("cardId"),
		Limit:   store.Limit(c.QueryInt("limit", store.DefaultActivityLimit), store.DefaultActivityLimit),
	}
	activities, err := h.store.Activities.List(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"activities": activities,
		"limit":      q.Limit,
	})
}
