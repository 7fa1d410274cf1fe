package models

import (
	"time"
)

type ActivityType string

const (
	ActivityCardCreated            ActivityType = "card_created"
	ActivityCardUpdated            ActivityType = "card_updated"
	ActivityCardDeleted            ActivityType = "card_deleted"
	ActivityCardMoved              ActivityType = "card_moved"
	ActivityCardAssigned           ActivityType = "card_assigned"
	ActivityCardUnassigned         ActivityType = "card_unassigned"
	ActivityCommentAdded           ActivityType = "comment_added"
	ActivityCommentDeleted         ActivityType = "comment_deleted"
	ActivityDueDateSet             ActivityType = "due_date_set"
	ActivityDueDateRemoved         ActivityType = "due_date_removed"
	ActivityPrioritySet            ActivityType = "priority_set"
	ActivityLabelAdded             ActivityType = "label_added"
	ActivityLabelRemoved           ActivityType = "label_removed"
	ActivityChecklistAdded         ActivityType = "checklist_added"
	ActivityChecklistItemCompleted ActivityType = "checklist_item_completed"
	ActivityCardCompleted          ActivityType = "card_completed"
	ActivityCardUncompleted        ActivityType = "card_uncompleted"
	ActivityColumnCreated          ActivityType = "column_created"
	ActivityColumnDeleted          ActivityType = "column_deleted"
	ActivityMemberJoined           ActivityType = "member_joined"
	ActivityMemberLeft             ActivityType = "member_left"
)

// Activity is an append-only audit record for one board change.
type Activity struct {
	ID          string         `json:"id" gorm:"primaryKey" firestore:"-"`
	BoardID     string         `json:"boardId" gorm:"index;not null" firestore:"boardId"`
	CardID      string         `json:"cardId,omitempty" gorm:"index" firestore:"cardId,omitempty"`
	Type        ActivityType   `json:"type" gorm:"not null" firestore:"type"`
	UserID      string         `json:"userId" gorm:"not null" firestore:"userId"`
	UserEmail   string         `json:"userEmail" firestore:"userEmail"`
	UserName    string         `json:"userName,omitempty" firestore:"userName,omitempty"`
	Description string         `json:"description" firestore:"description"`
	OldValue    map[string]any `json:"oldValue,omitempty" gorm:"serializer:json;type:text" firestore:"oldValue,omitempty"`
	NewValue    map[string]any `json:"newValue,omitempty" gorm:"serializer:json;type:text" firestore:"newValue,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" gorm:"serializer:json;type:text" firestore:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"index" firestore:"createdAt"`
}
