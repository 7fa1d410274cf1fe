package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

// GetNotifications returns the current user's notifications, newest first
func (h *Handler) GetNotifications(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit := store.Limit(c.QueryInt("limit", store.DefaultNotificationLimit), store.DefaultNotificationLimit)

	notifications, err := h.store.Notifications.ListForUser(c.UserContext(), userID, limit)
	if err != nil {
		return respondError(c, err)
	}

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread":        unread,
		"limit":         limit,
	})
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	err := h.store.Notifications.MarkRead(c.UserContext(), userID, c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return respondError(c, newError(fiber.StatusNotFound, "Notification not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead marks all notifications as read for the current user
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	n, err := h.store.Notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "updated": n})
}

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return respondError(c, newError(fiber.StatusBadRequest, "Token is required"))
	}

	if _, err := h.store.Profiles.Upsert(c.UserContext(), userID, models.ProfilePatch{FCMToken: &req.Token}); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}
