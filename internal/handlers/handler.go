package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/boardsync"
	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/services"
	"github.com/arnold/taskflow-api/internal/store"
)

// Handler serves the REST API.
type Handler struct {
	store    *store.Store
	sessions *boardsync.Manager
	recorder *services.Recorder
	hub      *Hub
	validate *validator.Validate
}

func New(s *store.Store, sessions *boardsync.Manager, recorder *services.Recorder, hub *Hub) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		recorder: recorder,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// apiError carries the status and message written to the client.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func newError(status int, message string) error {
	return &apiError{status: status, message: message}
}

var (
	errBoardNotFound  = newError(fiber.StatusNotFound, "Board not found")
	errNotOwner       = newError(fiber.StatusForbidden, "Only the board owner can do this")
	errCannotEdit     = newError(fiber.StatusForbidden, "You don't have permission to edit this board")
	errAlreadyMember  = newError(fiber.StatusConflict, "You are already a member of this board")
	errInvalidBody    = newError(fiber.StatusBadRequest, "Invalid request body")
	errLabelNotFound  = newError(fiber.StatusNotFound, "Label not found")
	errMemberNotFound = newError(fiber.StatusNotFound, "Member not found")
)

// respondError maps err to a status and writes {"error": ...}.
func respondError(c *fiber.Ctx, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return c.Status(ae.status).JSON(fiber.Map{"error": ae.message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, store.ErrPermissionDenied), errors.Is(err, kanban.ErrNotCommentAuthor):
		status = fiber.StatusForbidden
	case errors.Is(err, kanban.ErrColumnNotFound),
		errors.Is(err, kanban.ErrCardNotFound),
		errors.Is(err, kanban.ErrCommentNotFound),
		errors.Is(err, kanban.ErrChecklistNotFound),
		errors.Is(err, kanban.ErrChecklistItemNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, kanban.ErrInvalidMove),
		errors.Is(err, kanban.ErrEmptyText),
		errors.Is(err, kanban.ErrInvalidPriority),
		errors.Is(err, kanban.ErrInvalidBoard):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		logRequestError(c, err, "request failed")
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	msg := err.Error()
	return c.Status(status).JSON(fiber.Map{"error": strings.ToUpper(msg[:1]) + msg[1:]})
}

func logRequestError(c *fiber.Ctx, err error, msg string) {
	log.WithError(err).WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"user":   middleware.GetUserID(c),
	}).Error(msg)
}

// parse decodes the body into req and runs its validate tags.
func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errInvalidBody
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return newError(fiber.StatusBadRequest, fmt.Sprintf("Field %q failed %q validation", fe.Field(), fe.Tag()))
		}
		return errInvalidBody
	}
	return nil
}

func actor(c *fiber.Ctx) services.Actor {
	return services.Actor{ID: middleware.GetUserID(c), Email: middleware.GetEmail(c)}
}

// memberBoard returns the live board if the caller is a member. Non-members
// get the same 404 as a missing board.
func (h *Handler) memberBoard(c *fiber.Ctx) (*models.Board, error) {
	b, err := h.sessions.Current(c.UserContext(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errBoardNotFound
	}
	if err != nil {
		return nil, err
	}
	if !b.IsMember(middleware.GetUserID(c)) {
		return nil, errBoardNotFound
	}
	return b, nil
}

// edit runs a data mutation for a caller allowed to edit the board.
func (h *Handler) edit(c *fiber.Ctx, mut func(b *models.Board) (models.BoardData, error)) (boardsync.ApplyResult, error) {
	return h.mutate(c, true, mut)
}

// mutate is edit with the edit permission check optional; members who may
// not edit can still comment.
func (h *Handler) mutate(c *fiber.Ctx, needEdit bool, mut func(b *models.Board) (models.BoardData, error)) (boardsync.ApplyResult, error) {
	userID := middleware.GetUserID(c)
	res, err := h.sessions.Apply(clientContext(c), c.Params("id"), userID, func(b *models.Board) (models.BoardData, error) {
		if !b.IsMember(userID) {
			return b.Data, errBoardNotFound
		}
		if needEdit && !b.CanEdit(userID) {
			return b.Data, errCannotEdit
		}
		return mut(b)
	})
	if errors.Is(err, store.ErrNotFound) {
		return res, errBoardNotFound
	}
	return res, err
}

// patch runs a metadata write. fn rejects callers who may not make it.
func (h *Handler) patch(c *fiber.Ctx, boardID string, fn boardsync.PatchFunc) (boardsync.ApplyResult, error) {
	res, err := h.sessions.Patch(clientContext(c), boardID, middleware.GetUserID(c), fn)
	if errors.Is(err, store.ErrNotFound) {
		return res, errBoardNotFound
	}
	return res, err
}

// clientContext tags the request context with the caller's websocket
// client id, if it sent one.
func clientContext(c *fiber.Ctx) context.Context {
	return boardsync.WithClientID(c.UserContext(), c.Get(ClientIDHeader))
}
