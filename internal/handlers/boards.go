package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

func summarize(b *models.Board) models.BoardSummary {
	cards, completed := 0, 0
	for _, card := range b.Data.Cards {
		cards++
		if card.Completed {
			completed++
		}
	}
	return models.BoardSummary{
		ID:             b.ID,
		Title:          b.Title,
		Description:    b.Description,
		Color:          b.Color,
		OwnerID:        b.OwnerID,
		MemberCount:    len(b.MemberIDs),
		IsArchived:     b.IsArchived,
		CardCount:      cards,
		CompletedCount: completed,
		CreatedAt:      b.CreatedAt,
	}
}

// GetBoards lists the caller's boards, newest first. Archived boards are
// left out unless ?archived=true.
func (h *Handler) GetBoards(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	boards, err := h.store.Boards.ListForMember(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	withArchived := c.QueryBool("archived", false)
	summaries := make([]models.BoardSummary, 0, len(boards))
	for i := range boards {
		if boards[i].IsArchived && !withArchived {
			continue
		}
		summaries = append(summaries, summarize(&boards[i]))
	}
	return c.JSON(summaries)
}

func (h *Handler) CreateBoard(c *fiber.Ctx) error {
	var req models.CreateBoardRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return respondError(c, newError(fiber.StatusBadRequest, "Board title is required"))
	}

	code, err := id.InviteCode()
	if err != nil {
		return respondError(c, err)
	}
	userID := middleware.GetUserID(c)
	board := &models.Board{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Color:       req.Color,
		OwnerID:     userID,
		MemberIDs:   []string{userID},
		InviteCode:  code,
		Data:        kanban.NewBoardData(),
		Labels:      kanban.DefaultLabels(),
	}
	if err := h.store.Boards.Create(c.UserContext(), board); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(board)
}

func (h *Handler) GetBoard(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(b)
}

// UpdateBoard changes board metadata. Owner only.
func (h *Handler) UpdateBoard(c *fiber.Ctx) error {
	var req models.UpdateBoardRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	userID := middleware.GetUserID(c)
	res, err := h.patch(c, c.Params("id"), func(b *models.Board) (store.BoardPatch, error) {
		if !b.IsMember(userID) {
			return store.BoardPatch{}, errBoardNotFound
		}
		if !b.IsOwner(userID) {
			return store.BoardPatch{}, errNotOwner
		}
		p := store.BoardPatch{
			Color:      req.Color,
			Settings:   req.Settings,
			IsArchived: req.IsArchived,
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return p, newError(fiber.StatusBadRequest, "Board title is required")
			}
			p.Title = &title
		}
		if req.Description != nil {
			desc := strings.TrimSpace(*req.Description)
			p.Description = &desc
		}
		return p, nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res.After)
}

// DeleteBoard removes the board document. Owner only. Connected clients are
// told through the board subscription.
func (h *Handler) DeleteBoard(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}
	if !b.IsOwner(middleware.GetUserID(c)) {
		return respondError(c, errNotOwner)
	}
	if err := h.store.Boards.Delete(c.UserContext(), b.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// RegenerateInviteCode replaces the invite code, invalidating the old one.
func (h *Handler) RegenerateInviteCode(c *fiber.Ctx) error {
	code, err := id.InviteCode()
	if err != nil {
		return respondError(c, err)
	}
	userID := middleware.GetUserID(c)
	_, err = h.patch(c, c.Params("id"), func(b *models.Board) (store.BoardPatch, error) {
		if !b.IsMember(userID) {
			return store.BoardPatch{}, errBoardNotFound
		}
		if !b.CanInvite(userID) {
			return store.BoardPatch{}, newError(fiber.StatusForbidden, "You don't have permission to invite members")
		}
		return store.BoardPatch{InviteCode: &code}, nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"inviteCode": code})
}

// ExportBoard downloads the board as a JSON attachment.
func (h *Handler) ExportBoard(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}
	c.Attachment(kanban.ExportFilename(b.Title))
	return c.JSON(kanban.ExportBoard(b))
}

// GetCards returns the board's columns with the cards that pass the filter.
func (h *Handler) GetCards(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}

	f := kanban.Filter{
		Query:         c.Query("q"),
		Assignee:      c.Query("assignee"),
		Priority:      models.Priority(c.Query("priority")),
		Due:           kanban.DueFilter(c.Query("due")),
		ShowCompleted: c.QueryBool("showCompleted", true),
	}
	if !f.Priority.Valid() {
		return respondError(c, kanban.ErrInvalidPriority)
	}
	switch f.Due {
	case kanban.DueAny, kanban.DueAll, kanban.DueOverdue, kanban.DueToday, kanban.DueThisWeek:
	default:
		return respondError(c, newError(fiber.StatusBadRequest, fmt.Sprintf("Unknown due filter %q", f.Due)))
	}
	if labels := c.Query("labels"); labels != "" {
		f.Labels = strings.Split(labels, ",")
	}
	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return respondError(c, newError(fiber.StatusBadRequest, fmt.Sprintf("Unknown time zone %q", tz)))
		}
		f.Location = loc
	}

	return c.JSON(kanban.FilterCards(b.Data, f, time.Now()))
}

// CreateLabel adds a label to the board's label set.
func (h *Handler) CreateLabel(c *fiber.Ctx) error {
	var req models.CreateLabelRequest
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}
	labelID, err := id.Generate("label")
	if err != nil {
		return respondError(c, err)
	}
	label := models.Label{ID: labelID, Name: strings.TrimSpace(req.Name), Color: req.Color}

	userID := middleware.GetUserID(c)
	_, err = h.patch(c, c.Params("id"), func(b *models.Board) (store.BoardPatch, error) {
		if !b.IsMember(userID) {
			return store.BoardPatch{}, errBoardNotFound
		}
		if !b.CanEdit(userID) {
			return store.BoardPatch{}, errCannotEdit
		}
		return store.BoardPatch{Labels: append(b.Labels, label)}, nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(label)
}
