package models

import (
	"slices"
	"time"
)

// Board is the single document holding a board's metadata and all of its
// columns and cards.
type Board struct {
	ID          string        `json:"id" gorm:"primaryKey" firestore:"-"`
	Title       string        `json:"title" gorm:"not null" firestore:"title"`
	Description string        `json:"description,omitempty" firestore:"description,omitempty"`
	Color       string        `json:"color,omitempty" firestore:"color,omitempty"`
	OwnerID     string        `json:"ownerId" gorm:"index;not null" firestore:"ownerId"`
	MemberIDs   []string      `json:"memberIds" gorm:"-" firestore:"memberIds"`
	InviteCode  string        `json:"inviteCode" gorm:"uniqueIndex;not null" firestore:"inviteCode"`
	Data        BoardData     `json:"data" gorm:"serializer:json;type:text" firestore:"data"`
	Labels      []Label       `json:"labels" gorm:"serializer:json;type:text" firestore:"labels"`
	Settings    BoardSettings `json:"settings" gorm:"serializer:json;type:text" firestore:"settings"`
	IsArchived  bool          `json:"isArchived" gorm:"default:false" firestore:"isArchived"`
	CreatedAt   time.Time     `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt" firestore:"updatedAt"`
}

// BoardData is the mutable content of a board.
type BoardData struct {
	Columns     map[string]Column `json:"columns" firestore:"columns"`
	Cards       map[string]Card   `json:"cards" firestore:"cards"`
	ColumnOrder []string          `json:"columnOrder" firestore:"columnOrder"`
}

type Column struct {
	ID      string   `json:"id" firestore:"id"`
	Title   string   `json:"title" firestore:"title"`
	CardIDs []string `json:"cardIds" firestore:"cardIds"`
}

type Label struct {
	ID    string `json:"id" firestore:"id"`
	Name  string `json:"name" firestore:"name"`
	Color string `json:"color" firestore:"color"`
}

type BoardSettings struct {
	AllowMembersToEdit   *bool `json:"allowMembersToEdit,omitempty" firestore:"allowMembersToEdit,omitempty"`
	AllowMembersToInvite *bool `json:"allowMembersToInvite,omitempty" firestore:"allowMembersToInvite,omitempty"`
}

// IsMember reports whether userID has access to the board.
func (b *Board) IsMember(userID string) bool {
	return userID != "" && slices.Contains(b.MemberIDs, userID)
}

func (b *Board) IsOwner(userID string) bool {
	return userID != "" && b.OwnerID == userID
}

// CanEdit reports whether userID may change the board's data. Members may
// edit unless the owner explicitly turned it off.
func (b *Board) CanEdit(userID string) bool {
	if b.IsOwner(userID) {
		return true
	}
	if !b.IsMember(userID) {
		return false
	}
	return b.Settings.AllowMembersToEdit == nil || *b.Settings.AllowMembersToEdit
}

// CanInvite reports whether userID may regenerate the invite code.
func (b *Board) CanInvite(userID string) bool {
	if b.IsOwner(userID) {
		return true
	}
	return b.IsMember(userID) && b.Settings.AllowMembersToInvite != nil && *b.Settings.AllowMembersToInvite
}

// Label returns the board label with the given id.
func (b *Board) Label(id string) (Label, bool) {
	for _, l := range b.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.MemberIDs = slices.Clone(b.MemberIDs)
	out.Labels = slices.Clone(b.Labels)
	out.Settings = BoardSettings{
		AllowMembersToEdit:   cloneBool(b.Settings.AllowMembersToEdit),
		AllowMembersToInvite: cloneBool(b.Settings.AllowMembersToInvite),
	}
	out.Data = b.Data.Clone()
	return &out
}

// Clone returns a deep copy of the board data. Nil maps and slices come back
// empty so callers can mutate the copy directly.
func (d BoardData) Clone() BoardData {
	out := BoardData{
		Columns:     make(map[string]Column, len(d.Columns)),
		Cards:       make(map[string]Card, len(d.Cards)),
		ColumnOrder: append([]string{}, d.ColumnOrder...),
	}
	for id, col := range d.Columns {
		col.CardIDs = append([]string{}, col.CardIDs...)
		out.Columns[id] = col
	}
	for id, card := range d.Cards {
		out.Cards[id] = card.Clone()
	}
	return out
}

// ColumnOf returns the id of the column listing cardID.
func (d BoardData) ColumnOf(cardID string) (string, bool) {
	for _, colID := range d.ColumnOrder {
		if slices.Contains(d.Columns[colID].CardIDs, cardID) {
			return colID, true
		}
	}
	for colID, col := range d.Columns {
		if slices.Contains(col.CardIDs, cardID) {
			return colID, true
		}
	}
	return "", false
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	b := *v
	return &b
}

// Board DTOs
type CreateBoardRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateBoardRequest struct {
	Title       *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	Color       *string        `json:"color" validate:"omitempty,hexcolor"`
	Settings    *BoardSettings `json:"settings"`
	IsArchived  *bool          `json:"isArchived"`
}

type CreateLabelRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type BoardSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Color          string    `json:"color,omitempty"`
	OwnerID        string    `json:"ownerId"`
	MemberCount    int       `json:"memberCount"`
	IsArchived     bool      `json:"isArchived"`
	CardCount      int       `json:"cardCount"`
	CompletedCount int       `json:"completedCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
