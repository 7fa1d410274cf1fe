package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
	"github.com/arnold/taskflow-api/internal/store"
)

func (h *Handler) CreateCard(c *fiber.Ctx) error {
	var req models.CreateCardRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	columnID := c.Params("columnId")
	var card models.Card
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, created, err := kanban.AddCard(b.Data, columnID, req.Content, req.Description)
		card = created
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	col := res.After.Data.Columns[columnID]
	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      card.ID,
		Type:        models.ActivityCardCreated,
		Description: fmt.Sprintf("created card %q in %q", kanban.Excerpt(card.Content), col.Title),
		NewValue:    map[string]any{"content": card.Content, "description": card.Description},
		Metadata:    map[string]any{"columnId": col.ID, "columnTitle": col.Title},
	})
	return c.Status(fiber.StatusCreated).JSON(card)
}

func (h *Handler) UpdateCard(c *fiber.Ctx) error {
	var req models.UpdateCardRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	cardID := c.Params("cardId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.UpdateCard(b.Data, cardID, req.Content, req.Description)
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	if res.Changed {
		old := res.Before.Data.Cards[cardID]
		h.recorder.Activity(actor(c), services.ActivityEntry{
			BoardID:     res.After.ID,
			CardID:      cardID,
			Type:        models.ActivityCardUpdated,
			Description: fmt.Sprintf("updated card %q", kanban.Excerpt(card.Content)),
			OldValue:    map[string]any{"content": old.Content, "description": old.Description},
			NewValue:    map[string]any{"content": card.Content, "description": card.Description},
		})
	}
	return c.JSON(card)
}

func (h *Handler) DeleteCard(c *fiber.Ctx) error {
	cardID := c.Params("cardId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.DeleteCard(b.Data, cardID)
	})
	if err != nil {
		return respondError(c, err)
	}

	old := res.Before.Data.Cards[cardID]
	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityCardDeleted,
		Description: fmt.Sprintf("deleted card %q", kanban.Excerpt(old.Content)),
		OldValue:    map[string]any{"content": old.Content, "description": old.Description},
	})
	return c.JSON(fiber.Map{"success": true})
}

// ToggleComplete flips the card's completed flag.
func (h *Handler) ToggleComplete(c *fiber.Ctx) error {
	cardID := c.Params("cardId")
	var completed bool
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		data, done, err := kanban.ToggleCompleted(b.Data, cardID)
		completed = done
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	entry := services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityCardCompleted,
		Description: fmt.Sprintf("completed card %q", kanban.Excerpt(card.Content)),
	}
	if !completed {
		entry.Type = models.ActivityCardUncompleted
		entry.Description = fmt.Sprintf("reopened card %q", kanban.Excerpt(card.Content))
	}
	h.recorder.Activity(actor(c), entry)
	return c.JSON(card)
}

// AssignCard sets or, with an empty userId, clears the card's assignee.
// The assignee must be a board member and is notified.
func (h *Handler) AssignCard(c *fiber.Ctx) error {
	var req models.AssignCardRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	email := ""
	if req.UserID != "" {
		email = h.emailOf(c, req.UserID)
	}
	cardID := c.Params("cardId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		if req.UserID != "" && !b.IsMember(req.UserID) {
			return b.Data, newError(fiber.StatusBadRequest, "Assignee must be a board member")
		}
		return kanban.Assign(b.Data, cardID, req.UserID, email)
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	if !res.Changed {
		return c.JSON(card)
	}
	old := res.Before.Data.Cards[cardID]
	who := actor(c)
	entry := services.ActivityEntry{
		BoardID:  res.After.ID,
		CardID:   cardID,
		OldValue: map[string]any{"assignedTo": old.AssignedTo, "assignedToEmail": old.AssignedToEmail},
		NewValue: map[string]any{"assignedTo": card.AssignedTo, "assignedToEmail": card.AssignedToEmail},
	}
	if card.AssignedTo == "" {
		entry.Type = models.ActivityCardUnassigned
		entry.Description = fmt.Sprintf("unassigned card %q", kanban.Excerpt(card.Content))
	} else {
		entry.Type = models.ActivityCardAssigned
		entry.Description = fmt.Sprintf("assigned card %q to %s", kanban.Excerpt(card.Content), displayEmail(card.AssignedToEmail, card.AssignedTo))
		h.recorder.Notify(who, services.NotificationEntry{
			UserID:  card.AssignedTo,
			Type:    models.NotificationAssignment,
			Title:   "You were assigned to a card",
			Message: fmt.Sprintf("%s assigned you to %q on %q", displayEmail(who.Email, who.ID), kanban.Excerpt(card.Content), res.After.Title),
			BoardID: res.After.ID,
			CardID:  cardID,
		})
	}
	h.recorder.Activity(who, entry)
	return c.JSON(card)
}

// SetDueDate sets or, with a null dueDate, clears the card's due date. The
// assignee is notified when a date is set.
func (h *Handler) SetDueDate(c *fiber.Ctx) error {
	var req models.DueDateRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	cardID := c.Params("cardId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.SetDueDate(b.Data, cardID, req.DueDate)
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	if !res.Changed {
		return c.JSON(card)
	}
	who := actor(c)
	entry := services.ActivityEntry{
		BoardID:  res.After.ID,
		CardID:   cardID,
		OldValue: map[string]any{"dueDate": res.Before.Data.Cards[cardID].DueDate},
		NewValue: map[string]any{"dueDate": card.DueDate},
	}
	if card.DueDate == nil {
		entry.Type = models.ActivityDueDateRemoved
		entry.Description = fmt.Sprintf("removed the due date of %q", kanban.Excerpt(card.Content))
	} else {
		due := card.DueDate.Format("2006-01-02")
		entry.Type = models.ActivityDueDateSet
		entry.Description = fmt.Sprintf("set the due date of %q to %s", kanban.Excerpt(card.Content), due)
		h.recorder.Notify(who, services.NotificationEntry{
			UserID:  card.AssignedTo,
			Type:    models.NotificationDeadline,
			Title:   "Due date set",
			Message: fmt.Sprintf("%q is due %s", kanban.Excerpt(card.Content), due),
			BoardID: res.After.ID,
			CardID:  cardID,
		})
	}
	h.recorder.Activity(who, entry)
	return c.JSON(card)
}

func (h *Handler) SetPriority(c *fiber.Ctx) error {
	var req models.PriorityRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	cardID := c.Params("cardId")
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		return kanban.SetPriority(b.Data, cardID, req.Priority)
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	if res.Changed {
		h.recorder.Activity(actor(c), services.ActivityEntry{
			BoardID:     res.After.ID,
			CardID:      cardID,
			Type:        models.ActivityPrioritySet,
			Description: fmt.Sprintf("set the priority of %q to %s", kanban.Excerpt(card.Content), priorityName(card.Priority)),
			OldValue:    map[string]any{"priority": string(res.Before.Data.Cards[cardID].Priority)},
			NewValue:    map[string]any{"priority": string(card.Priority)},
		})
	}
	return c.JSON(card)
}

// ToggleLabel adds the board label to the card, or removes it if present.
func (h *Handler) ToggleLabel(c *fiber.Ctx) error {
	cardID, labelID := c.Params("cardId"), c.Params("labelId")
	var (
		added bool
		label models.Label
	)
	res, err := h.edit(c, func(b *models.Board) (models.BoardData, error) {
		l, ok := b.Label(labelID)
		if !ok {
			return b.Data, errLabelNotFound
		}
		label = l
		data, on, err := kanban.ToggleLabel(b.Data, cardID, labelID)
		added = on
		return data, err
	})
	if err != nil {
		return respondError(c, err)
	}

	card := res.After.Data.Cards[cardID]
	entry := services.ActivityEntry{
		BoardID:     res.After.ID,
		CardID:      cardID,
		Type:        models.ActivityLabelAdded,
		Description: fmt.Sprintf("added label %q to %q", label.Name, kanban.Excerpt(card.Content)),
		Metadata:    map[string]any{"labelId": label.ID, "labelName": label.Name},
	}
	if !added {
		entry.Type = models.ActivityLabelRemoved
		entry.Description = fmt.Sprintf("removed label %q from %q", label.Name, kanban.Excerpt(card.Content))
	}
	h.recorder.Activity(actor(c), entry)
	return c.JSON(card)
}

// emailOf resolves a user's email, preferring the caller's token.
func (h *Handler) emailOf(c *fiber.Ctx, uid string) string {
	if uid == middleware.GetUserID(c) && middleware.GetEmail(c) != "" {
		return middleware.GetEmail(c)
	}
	p, err := h.store.Profiles.Get(c.UserContext(), uid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logRequestError(c, err, "loading profile")
		}
		return ""
	}
	return p.Email
}

func displayEmail(email, uid string) string {
	if email != "" {
		return email
	}
	return models.ShortUID(uid)
}

func priorityName(p models.Priority) string {
	if p == "" {
		return "none"
	}
	return string(p)
}
