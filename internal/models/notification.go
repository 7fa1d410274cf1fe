package models

import (
	"time"
)

type NotificationType string

const (
	NotificationAssignment  NotificationType = "assignment"
	NotificationComment     NotificationType = "comment"
	NotificationDeadline    NotificationType = "deadline"
	NotificationMention     NotificationType = "mention"
	NotificationCardUpdate  NotificationType = "card_update"
	NotificationBoardUpdate NotificationType = "board_update"
)

// Notification is addressed to a single user.
type Notification struct {
	ID          string           `json:"id" gorm:"primaryKey" firestore:"-"`
	UserID      string           `json:"userId" gorm:"index;not null" firestore:"userId"`
	Type        NotificationType `json:"type" gorm:"not null" firestore:"type"`
	Title       string           `json:"title" gorm:"not null" firestore:"title"`
	Message     string           `json:"message" firestore:"message"`
	BoardID     string           `json:"boardId,omitempty" firestore:"boardId,omitempty"`
	CardID      string           `json:"cardId,omitempty" firestore:"cardId,omitempty"`
	AuthorID    string           `json:"authorId,omitempty" firestore:"authorId,omitempty"`
	AuthorEmail string           `json:"authorEmail,omitempty" firestore:"authorEmail,omitempty"`
	Read        bool             `json:"read" gorm:"default:false" firestore:"read"`
	Link        string           `json:"link,omitempty" firestore:"link,omitempty"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"index" firestore:"createdAt"`
}

// NotificationLink builds the client route for a board or card.
func NotificationLink(boardID, cardID string) string {
	switch {
	case boardID != "" && cardID != "":
		return "/board/" + boardID + "#card-" + cardID
	case boardID != "":
		return "/board/" + boardID
	}
	return ""
}
