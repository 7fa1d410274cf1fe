package models

import (
	"time"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// BoardMember is the SQL projection of Board.MemberIDs, kept in its own
// table so boards can be listed by member.
type BoardMember struct {
	BoardID  string    `json:"boardId" gorm:"primaryKey"`
	UserID   string    `json:"userId" gorm:"primaryKey;index"`
	Role     string    `json:"role" gorm:"not null;default:'member'"` // owner, member
	JoinedAt time.Time `json:"joinedAt"`
}

// MemberInfo is what the members endpoint returns.
type MemberInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}
