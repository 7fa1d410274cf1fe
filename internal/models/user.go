package models

import (
	"strings"
	"time"
)

// UserProfile is the per-user document keyed by the auth provider's uid.
type UserProfile struct {
	UID         string    `json:"uid" gorm:"primaryKey" firestore:"-"`
	Email       string    `json:"email" firestore:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	FirstName   string    `json:"firstName,omitempty" firestore:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty" firestore:"lastName,omitempty"`
	MiddleName  string    `json:"middleName,omitempty" firestore:"middleName,omitempty"`
	Telegram    string    `json:"telegram,omitempty" firestore:"telegram,omitempty"`
	Discord     string    `json:"discord,omitempty" firestore:"discord,omitempty"`
	FCMToken    string    `json:"-" gorm:"column:fcm_token" firestore:"fcmToken,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Name returns the name shown next to a user's actions.
func (p *UserProfile) Name() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.LastName, p.FirstName, p.MiddleName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return ShortUID(p.UID)
}

// ShortUID abbreviates a uid for display when no profile name exists.
func ShortUID(uid string) string {
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8] + "..."
}

// ProfilePatch is a merge write. Nil fields are left alone, empty strings
// clear the field.
type ProfilePatch struct {
	Email       *string `json:"-"`
	DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
	FirstName   *string `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName" validate:"omitempty,max=100"`
	MiddleName  *string `json:"middleName" validate:"omitempty,max=100"`
	Telegram    *string `json:"telegram" validate:"omitempty,max=100"`
	Discord     *string `json:"discord" validate:"omitempty,max=100"`
	FCMToken    *string `json:"-"`
}

// Apply merges the patch into p.
func (pp ProfilePatch) Apply(p *UserProfile) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.Email, pp.Email)
	set(&p.DisplayName, pp.DisplayName)
	set(&p.FirstName, pp.FirstName)
	set(&p.LastName, pp.LastName)
	set(&p.MiddleName, pp.MiddleName)
	set(&p.Telegram, pp.Telegram)
	set(&p.Discord, pp.Discord)
	set(&p.FCMToken, pp.FCMToken)
}
