package kanban

import "errors"

var (
	// ErrNoChange means the operation would leave the board as it is. Callers
	// skip persistence and activity logging.
	ErrNoChange = errors.New("no change")

	ErrColumnNotFound        = errors.New("column not found")
	ErrCardNotFound          = errors.New("card not found")
	ErrCommentNotFound       = errors.New("comment not found")
	ErrNotCommentAuthor      = errors.New("only the author can delete a comment")
	ErrChecklistNotFound     = errors.New("checklist not found")
	ErrChecklistItemNotFound = errors.New("checklist item not found")
	ErrInvalidMove           = errors.New("invalid move")
	ErrEmptyText             = errors.New("text is required")
	ErrInvalidPriority       = errors.New("invalid priority")
	ErrInvalidBoard          = errors.New("board data is inconsistent")
)
