// Package store defines the remote document collections the API works
// against. Backends live in the subpackages.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/arnold/taskflow-api/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// BoardSnapshot is one delivery of a board subscription. A deleted board is
// delivered as Err == ErrNotFound, after which the channel is closed.
type BoardSnapshot struct {
	Board *models.Board
	Err   error
}

// BoardPatch is a partial board write. Nil fields are left untouched.
type BoardPatch struct {
	Title       *string
	Description *string
	Color       *string
	InviteCode  *string
	Data        *models.BoardData
	Labels      []models.Label
	Settings    *models.BoardSettings
	IsArchived  *bool

	AddMemberID    string
	RemoveMemberID string
}

// Apply merges the patch into b and stamps UpdatedAt.
func (p BoardPatch) Apply(b *models.Board, at time.Time) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Color != nil {
		b.Color = *p.Color
	}
	if p.InviteCode != nil {
		b.InviteCode = *p.InviteCode
	}
	if p.Data != nil {
		b.Data = p.Data.Clone()
	}
	if p.Labels != nil {
		b.Labels = slices.Clone(p.Labels)
	}
	if p.Settings != nil {
		b.Settings = *p.Settings
	}
	if p.IsArchived != nil {
		b.IsArchived = *p.IsArchived
	}
	if p.AddMemberID != "" && !slices.Contains(b.MemberIDs, p.AddMemberID) {
		b.MemberIDs = append(b.MemberIDs, p.AddMemberID)
	}
	if p.RemoveMemberID != "" && p.RemoveMemberID != b.OwnerID {
		b.MemberIDs = slices.DeleteFunc(b.MemberIDs, func(id string) bool { return id == p.RemoveMemberID })
	}
	b.UpdatedAt = at
}

// Boards holds board documents.
type Boards interface {
	// Create stores b. An empty ID is assigned by the backend and written back.
	Create(ctx context.Context, b *models.Board) error
	Get(ctx context.Context, id string) (*models.Board, error)
	// ListForMember returns the boards userID belongs to, newest first.
	ListForMember(ctx context.Context, userID string) ([]models.Board, error)
	FindByInviteCode(ctx context.Context, code string) (*models.Board, error)
	Update(ctx context.Context, id string, patch BoardPatch) error
	Delete(ctx context.Context, id string) error
	// Subscribe delivers the current board and then every later change until
	// ctx is cancelled or the board is deleted.
	Subscribe(ctx context.Context, id string) (<-chan BoardSnapshot, error)
}

// ActivityQuery filters the activity log. Limit <= 0 means DefaultActivityLimit.
type ActivityQuery struct {
	BoardID string
	CardID  string
	Limit   int
}

const (
	DefaultActivityLimit     = 50
	DefaultNotificationLimit = 50
)

type Activities interface {
	Add(ctx context.Context, a *models.Activity) error
	// List returns matching activities, newest first.
	List(ctx context.Context, q ActivityQuery) ([]models.Activity, error)
}

type Notifications interface {
	Add(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	// MarkRead fails with ErrNotFound when the notification is not userID's.
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type Profiles interface {
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
	Upsert(ctx context.Context, uid string, patch models.ProfilePatch) (*models.UserProfile, error)
	// GetMany returns the profiles that exist; missing uids are absent.
	GetMany(ctx context.Context, uids []string) (map[string]*models.UserProfile, error)
}

// Store bundles the collections of one backend.
type Store struct {
	Boards        Boards
	Activities    Activities
	Notifications Notifications
	Profiles      Profiles

	close func() error
}

// New assembles a Store. closeFn may be nil.
func New(b Boards, a Activities, n Notifications, p Profiles, closeFn func() error) *Store {
	return &Store{Boards: b, Activities: a, Notifications: n, Profiles: p, close: closeFn}
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Limit clamps a requested page size.
func Limit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > 200 {
		return 200
	}
	return n
}
