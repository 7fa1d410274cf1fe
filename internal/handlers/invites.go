package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
	"github.com/arnold/taskflow-api/internal/store"
)

// JoinBoard joins a board via invite code
func (h *Handler) JoinBoard(c *fiber.Ctx) error {
	code, ok := id.NormalizeInviteCode(c.Params("code"))
	if !ok {
		return respondError(c, newError(fiber.StatusBadRequest, "Invite code must be 16 characters"))
	}

	board, err := h.store.Boards.FindByInviteCode(c.UserContext(), code)
	if errors.Is(err, store.ErrNotFound) {
		return respondError(c, newError(fiber.StatusNotFound, "Invalid invite code"))
	}
	if err != nil {
		return respondError(c, err)
	}

	userID := middleware.GetUserID(c)
	if board.IsMember(userID) {
		return respondError(c, errAlreadyMember)
	}
	res, err := h.patch(c, board.ID, func(b *models.Board) (store.BoardPatch, error) {
		if b.InviteCode != code {
			return store.BoardPatch{}, newError(fiber.StatusNotFound, "Invalid invite code")
		}
		if b.IsMember(userID) {
			return store.BoardPatch{}, errAlreadyMember
		}
		return store.BoardPatch{AddMemberID: userID}, nil
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     board.ID,
		Type:        models.ActivityMemberJoined,
		Description: "joined the board",
	})
	return c.JSON(res.After)
}

// GetMembers lists the board's members with their profile names.
func (h *Handler) GetMembers(c *fiber.Ctx) error {
	b, err := h.memberBoard(c)
	if err != nil {
		return respondError(c, err)
	}
	profiles, err := h.store.Profiles.GetMany(c.UserContext(), b.MemberIDs)
	if err != nil {
		return respondError(c, err)
	}

	members := make([]models.MemberInfo, 0, len(b.MemberIDs))
	for _, uid := range b.MemberIDs {
		info := models.MemberInfo{ID: uid, Role: models.RoleMember, DisplayName: models.ShortUID(uid)}
		if uid == b.OwnerID {
			info.Role = models.RoleOwner
		}
		if p, ok := profiles[uid]; ok {
			info.Email = p.Email
			info.DisplayName = p.Name()
		}
		members = append(members, info)
	}
	return c.JSON(members)
}

// RemoveMember removes a member from the board. Owner only; the owner
// cannot be removed.
func (h *Handler) RemoveMember(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	target := c.Params("userId")
	_, err := h.patch(c, c.Params("id"), func(b *models.Board) (store.BoardPatch, error) {
		if !b.IsMember(userID) {
			return store.BoardPatch{}, errBoardNotFound
		}
		if !b.IsOwner(userID) {
			return store.BoardPatch{}, errNotOwner
		}
		if target == b.OwnerID {
			return store.BoardPatch{}, newError(fiber.StatusBadRequest, "Cannot remove the board owner")
		}
		if !b.IsMember(target) {
			return store.BoardPatch{}, errMemberNotFound
		}
		return store.BoardPatch{RemoveMemberID: target}, nil
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     c.Params("id"),
		Type:        models.ActivityMemberLeft,
		Description: "removed a member from the board",
		Metadata:    map[string]any{"userId": target},
	})
	return c.JSON(fiber.Map{"success": true})
}

// LeaveBoard removes the caller from the board. The owner cannot leave.
func (h *Handler) LeaveBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	_, err := h.patch(c, c.Params("id"), func(b *models.Board) (store.BoardPatch, error) {
		if !b.IsMember(userID) {
			return store.BoardPatch{}, errBoardNotFound
		}
		if b.IsOwner(userID) {
			return store.BoardPatch{}, newError(fiber.StatusBadRequest, "The owner cannot leave the board")
		}
		return store.BoardPatch{RemoveMemberID: userID}, nil
	})
	if err != nil {
		return respondError(c, err)
	}

	h.recorder.Activity(actor(c), services.ActivityEntry{
		BoardID:     c.Params("id"),
		Type:        models.ActivityMemberLeft,
		Description: "left the board",
	})
	return c.JSON(fiber.Map{"success": true})
}
