// Package firestore keeps the board documents in Cloud Firestore. Boards
// are documents in "boards"; subscriptions use document snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

const (
	boardsCollection        = "boards"
	activitiesCollection    = "activities"
	notificationsCollection = "notifications"
	profilesCollection      = "profiles"
)

// New dials Firestore for projectID.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*store.Store, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client. Close closes it.
func NewWithClient(client *firestore.Client) *store.Store {
	return store.New(
		&Boards{client: client},
		&Activities{client: client},
		&Notifications{client: client},
		&Profiles{client: client},
		client.Close,
	)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// mapErr translates gRPC status codes into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", store.ErrPermissionDenied, err)
	}
	return err
}

type Boards struct {
	client *firestore.Client
}

var _ store.Boards = (*Boards)(nil)

func (s *Boards) col() *firestore.CollectionRef {
	return s.client.Collection(boardsCollection)
}

func decodeBoard(snap *firestore.DocumentSnapshot) (*models.Board, error) {
	var b models.Board
	if err := snap.DataTo(&b); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", snap.Ref.ID, err)
	}
	b.ID = snap.Ref.ID
	return &b, nil
}

func (s *Boards) Create(ctx context.Context, b *models.Board) error {
	ref := s.col().NewDoc()
	if b.ID != "" {
		ref = s.col().Doc(b.ID)
	}
	b.ID = ref.ID
	if !b.IsMember(b.OwnerID) {
		b.MemberIDs = append([]string{b.OwnerID}, b.MemberIDs...)
	}
	ts := now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = ts
	}
	b.UpdatedAt = ts
	if _, err := ref.Create(ctx, b); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Boards) Get(ctx context.Context, boardID string) (*models.Board, error) {
	snap, err := s.col().Doc(boardID).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeBoard(snap)
}

func (s *Boards) ListForMember(ctx context.Context, userID string) ([]models.Board, error) {
	snaps, err := s.col().Where("memberIds", "array-contains", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(err)
	}
	boards := make([]models.Board, 0, len(snaps))
	for _, snap := range snaps {
		b, err := decodeBoard(snap)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	// Sorted here so the query needs no composite index.
	sort.SliceStable(boards, func(i, j int) bool { return boards[i].CreatedAt.After(boards[j].CreatedAt) })
	return boards, nil
}

func (s *Boards) FindByInviteCode(ctx context.Context, code string) (*models.Board, error) {
	snaps, err := s.col().Where("inviteCode", "==", code).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(err)
	}
	if len(snaps) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeBoard(snaps[0])
}

// boardUpdates turns a patch into field-path updates. Members are changed
// with array transforms so concurrent joins do not overwrite each other.
func boardUpdates(p store.BoardPatch, at time.Time) []firestore.Update {
	var ups []firestore.Update
	if p.Title != nil {
		ups = append(ups, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.Description != nil {
		ups = append(ups, firestore.Update{Path: "description", Value: *p.Description})
	}
	if p.Color != nil {
		ups = append(ups, firestore.Update{Path: "color", Value: *p.Color})
	}
	if p.InviteCode != nil {
		ups = append(ups, firestore.Update{Path: "inviteCode", Value: *p.InviteCode})
	}
	if p.Data != nil {
		ups = append(ups, firestore.Update{Path: "data", Value: p.Data.Clone()})
	}
	if p.Labels != nil {
		ups = append(ups, firestore.Update{Path: "labels", Value: p.Labels})
	}
	if p.Settings != nil {
		ups = append(ups, firestore.Update{Path: "settings", Value: *p.Settings})
	}
	if p.IsArchived != nil {
		ups = append(ups, firestore.Update{Path: "isArchived", Value: *p.IsArchived})
	}
	if p.AddMemberID != "" {
		ups = append(ups, firestore.Update{Path: "memberIds", Value: firestore.ArrayUnion(p.AddMemberID)})
	}
	if p.RemoveMemberID != "" {
		ups = append(ups, firestore.Update{Path: "memberIds", Value: firestore.ArrayRemove(p.RemoveMemberID)})
	}
	return append(ups, firestore.Update{Path: "updatedAt", Value: at})
}

func (s *Boards) Update(ctx context.Context, boardID string, patch store.BoardPatch) error {
	if patch.RemoveMemberID != "" {
		b, err := s.Get(ctx, boardID)
		if err != nil {
			return err
		}
		if b.OwnerID == patch.RemoveMemberID {
			patch.RemoveMemberID = ""
		}
	}
	if _, err := s.col().Doc(boardID).Update(ctx, boardUpdates(patch, now())); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Boards) Delete(ctx context.Context, boardID string) error {
	if _, err := s.col().Doc(boardID).Delete(ctx, firestore.Exists); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Boards) Subscribe(ctx context.Context, boardID string) (<-chan store.BoardSnapshot, error) {
	it := s.col().Doc(boardID).Snapshots(ctx)
	snap, err := it.Next()
	if err != nil {
		it.Stop()
		return nil, mapErr(err)
	}
	if !snap.Exists() {
		it.Stop()
		return nil, store.ErrNotFound
	}
	first, err := decodeBoard(snap)
	if err != nil {
		it.Stop()
		return nil, err
	}

	out := make(chan store.BoardSnapshot, 1)
	out <- store.BoardSnapshot{Board: first}
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return
			}
			var delivery store.BoardSnapshot
			switch {
			case err != nil:
				delivery.Err = mapErr(err)
			case !snap.Exists():
				delivery.Err = store.ErrNotFound
			default:
				b, derr := decodeBoard(snap)
				if derr != nil {
					log.WithError(derr).WithField("board", boardID).Warn("firestore: skipping undecodable snapshot")
					continue
				}
				delivery.Board = b
			}
			select {
			case out <- delivery:
			case <-ctx.Done():
				return
			}
			if delivery.Err != nil {
				return
			}
		}
	}()
	return out, nil
}
