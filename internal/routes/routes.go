package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnold/taskflow-api/internal/handlers"
	"github.com/arnold/taskflow-api/internal/middleware"
)

func Setup(app *fiber.App, h *handlers.Handler, auth *middleware.Authenticator, metrics prometheus.Gatherer) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	protected := api.Group("/", auth.Protected())

	protected.Get("/me", h.GetMe)
	protected.Put("/me", h.UpdateProfile)

	boards := protected.Group("/boards")
	boards.Get("/", h.GetBoards)
	boards.Post("/", h.CreateBoard)
	boards.Get("/:id", h.GetBoard)
	boards.Put("/:id", h.UpdateBoard)
	boards.Delete("/:id", h.DeleteBoard)
	boards.Post("/:id/invite-code", h.RegenerateInviteCode)
	boards.Get("/:id/export", h.ExportBoard)
	boards.Get("/:id/cards", h.GetCards)
	boards.Post("/:id/labels", h.CreateLabel)

	// Board members
	boards.Get("/:id/members", h.GetMembers)
	boards.Delete("/:id/members/:userId", h.RemoveMember)
	boards.Post("/:id/leave", h.LeaveBoard)

	// Board activity
	boards.Get("/:id/activity", h.GetBoardActivity)

	// Columns and drag-and-drop
	boards.Post("/:id/columns", h.CreateColumn)
	boards.Put("/:id/columns/:columnId", h.RenameColumn)
	boards.Delete("/:id/columns/:columnId", h.DeleteColumn)
	boards.Post("/:id/moves", h.MoveItem)

	// Cards
	boards.Post("/:id/columns/:columnId/cards", h.CreateCard)
	card := boards.Group("/:id/cards/:cardId")
	card.Put("/", h.UpdateCard)
	card.Delete("/", h.DeleteCard)
	card.Post("/complete", h.ToggleComplete)
	card.Put("/assignee", h.AssignCard)
	card.Put("/due-date", h.SetDueDate)
	card.Put("/priority", h.SetPriority)
	card.Post("/labels/:labelId", h.ToggleLabel)
	card.Post("/comments", h.AddComment)
	card.Delete("/comments/:commentId", h.DeleteComment)
	card.Post("/checklists", h.AddChecklist)
	card.Delete("/checklists/:checklistId", h.DeleteChecklist)
	card.Post("/checklists/:checklistId/items", h.AddChecklistItem)
	card.Post("/checklists/:checklistId/items/:itemId/toggle", h.ToggleChecklistItem)
	card.Delete("/checklists/:checklistId/items/:itemId", h.DeleteChecklistItem)

	// Join board via invite code
	protected.Post("/invites/:code/join", h.JoinBoard)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkNotificationRead)
	notifications.Post("/read-all", h.MarkAllRead)

	// Device token for push notifications
	protected.Post("/device-token", h.RegisterDeviceToken)

	// WebSocket for real-time board updates
	app.Use("/ws", auth.WebSocketUpgrade())
	app.Get("/ws/boards/:id", websocket.New(h.HandleWebSocket))
}
