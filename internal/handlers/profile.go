package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

// GetMe returns the caller's profile, creating it on first access. The
// email is synced from the auth token.
func (h *Handler) GetMe(c *fiber.Ctx) error {
	userID, email := middleware.GetUserID(c), middleware.GetEmail(c)

	p, err := h.store.Profiles.Get(c.UserContext(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p, err = h.store.Profiles.Upsert(c.UserContext(), userID, models.ProfilePatch{Email: &email})
	case err == nil && email != "" && p.Email != email:
		p, err = h.store.Profiles.Upsert(c.UserContext(), userID, models.ProfilePatch{Email: &email})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"profile":     p,
		"displayName": p.Name(),
	})
}

// UpdateProfile merges the given fields into the caller's profile. Empty
// strings clear a field.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var req models.ProfilePatch
	if err := h.parse(c, &req); err != nil {
		return respondError(c, err)
	}

	p, err := h.store.Profiles.Upsert(c.UserContext(), middleware.GetUserID(c), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"profile":     p,
		"displayName": p.Name(),
	})
}
