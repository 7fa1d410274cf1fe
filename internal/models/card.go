package models

import (
	"slices"
	"time"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities. The empty
// priority means "none" and is valid.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Card is a single work item. Its column membership lives in the column's
// CardIDs, not on the card.
type Card struct {
	ID              string      `json:"id" firestore:"id"`
	Content         string      `json:"content" firestore:"content"`
	Description     string      `json:"description,omitempty" firestore:"description,omitempty"`
	Priority        Priority    `json:"priority,omitempty" firestore:"priority,omitempty"`
	Labels          []string    `json:"labels,omitempty" firestore:"labels,omitempty"`
	AssignedTo      string      `json:"assignedTo,omitempty" firestore:"assignedTo,omitempty"`
	AssignedToEmail string      `json:"assignedToEmail,omitempty" firestore:"assignedToEmail,omitempty"`
	DueDate         *time.Time  `json:"dueDate,omitempty" firestore:"dueDate,omitempty"`
	Completed       bool        `json:"completed,omitempty" firestore:"completed,omitempty"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	Comments        []Comment   `json:"comments,omitempty" firestore:"comments,omitempty"`
	Checklists      []Checklist `json:"checklists,omitempty" firestore:"checklists,omitempty"`
	CreatedAt       time.Time   `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt" firestore:"updatedAt"`
}

type Comment struct {
	ID          string    `json:"id" firestore:"id"`
	Text        string    `json:"text" firestore:"text"`
	AuthorID    string    `json:"authorId" firestore:"authorId"`
	AuthorEmail string    `json:"authorEmail" firestore:"authorEmail"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}

type Checklist struct {
	ID        string          `json:"id" firestore:"id"`
	Title     string          `json:"title" firestore:"title"`
	Items     []ChecklistItem `json:"items" firestore:"items"`
	CreatedAt time.Time       `json:"createdAt" firestore:"createdAt"`
}

type ChecklistItem struct {
	ID        string    `json:"id" firestore:"id"`
	Text      string    `json:"text" firestore:"text"`
	Completed bool      `json:"completed" firestore:"completed"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	out.Labels = slices.Clone(c.Labels)
	out.Comments = slices.Clone(c.Comments)
	if c.DueDate != nil {
		d := *c.DueDate
		out.DueDate = &d
	}
	if c.CompletedAt != nil {
		d := *c.CompletedAt
		out.CompletedAt = &d
	}
	if c.Checklists != nil {
		out.Checklists = make([]Checklist, len(c.Checklists))
		for i, cl := range c.Checklists {
			cl.Items = slices.Clone(cl.Items)
			out.Checklists[i] = cl
		}
	}
	return out
}

// HasLabel reports whether the card carries labelID.
func (c Card) HasLabel(labelID string) bool {
	return slices.Contains(c.Labels, labelID)
}

// Card DTOs
type CreateCardRequest struct {
	Content     string `json:"content" validate:"required,max=500"`
	Description string `json:"description" validate:"max=10000"`
}

type UpdateCardRequest struct {
	Content     *string `json:"content" validate:"omitempty,min=1,max=500"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
}

type AssignCardRequest struct {
	UserID string `json:"userId"`
}

type DueDateRequest struct {
	DueDate *time.Time `json:"dueDate"`
}

type PriorityRequest struct {
	Priority Priority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

type CreateChecklistRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type CreateChecklistItemRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

type CreateColumnRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type RenameColumnRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// MoveRequest is a drag-and-drop instruction. Type is "column" or "card".
type MoveRequest struct {
	Type           string `json:"type" validate:"required,oneof=column card"`
	SourceColumnID string `json:"sourceColumnId"`
	SourceIndex    int    `json:"sourceIndex" validate:"min=0"`
	DestColumnID   string `json:"destColumnId"`
	DestIndex      int    `json:"destIndex" validate:"min=0"`
	CardID         string `json:"cardId"`
	ColumnID       string `json:"columnId"`
}
