// Package gormstore keeps the board documents in a SQL database. Each board
// is one row with JSON columns; membership is mirrored in board_members so
// boards can be listed per user. Subscriptions are driven by a change feed.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
	"github.com/arnold/taskflow-api/internal/store/feed"
)

// New returns a store backed by db. Board writes are announced on f.
func New(db *gorm.DB, f feed.Feed) *store.Store {
	return store.New(
		&Boards{db: db, feed: f},
		&Activities{db: db},
		&Notifications{db: db},
		&Profiles{db: db},
		f.Close,
	)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

type Boards struct {
	db   *gorm.DB
	feed feed.Feed
}

var _ store.Boards = (*Boards)(nil)

func (s *Boards) Create(ctx context.Context, b *models.Board) error {
	if b.ID == "" {
		boardID, err := id.Generate("board")
		if err != nil {
			return err
		}
		b.ID = boardID
	}
	if !b.IsMember(b.OwnerID) {
		b.MemberIDs = append([]string{b.OwnerID}, b.MemberIDs...)
	}
	ts := now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = ts
	}
	b.UpdatedAt = ts

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		for _, uid := range b.MemberIDs {
			role := models.RoleMember
			if uid == b.OwnerID {
				role = models.RoleOwner
			}
			m := models.BoardMember{BoardID: b.ID, UserID: uid, Role: role, JoinedAt: ts}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	s.publish(ctx, b.ID)
	return nil
}

func (s *Boards) Get(ctx context.Context, boardID string) (*models.Board, error) {
	return s.get(s.db.WithContext(ctx), boardID)
}

func (s *Boards) get(tx *gorm.DB, boardID string) (*models.Board, error) {
	var b models.Board
	if err := tx.Where("id = ?", boardID).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.loadMembers(tx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Boards) loadMembers(tx *gorm.DB, boards ...*models.Board) error {
	if len(boards) == 0 {
		return nil
	}
	ids := make([]string, len(boards))
	byID := make(map[string]*models.Board, len(boards))
	for i, b := range boards {
		ids[i] = b.ID
		byID[b.ID] = b
		b.MemberIDs = []string{}
	}
	var members []models.BoardMember
	if err := tx.Where("board_id IN ?", ids).
		Order("joined_at ASC").
		Order("user_id ASC").
		Find(&members).Error; err != nil {
		return err
	}
	for _, m := range members {
		b := byID[m.BoardID]
		if m.UserID == b.OwnerID {
			b.MemberIDs = append([]string{m.UserID}, b.MemberIDs...)
			continue
		}
		b.MemberIDs = append(b.MemberIDs, m.UserID)
	}
	return nil
}

func (s *Boards) ListForMember(ctx context.Context, userID string) ([]models.Board, error) {
	var boards []models.Board
	db := s.db.WithContext(ctx)
	if err := db.
		Select("boards.*").
		Joins("JOIN board_members ON board_members.board_id = boards.id").
		Where("board_members.user_id = ?", userID).
		Order("boards.created_at DESC").
		Find(&boards).Error; err != nil {
		return nil, err
	}
	ptrs := make([]*models.Board, len(boards))
	for i := range boards {
		ptrs[i] = &boards[i]
	}
	if err := s.loadMembers(db, ptrs...); err != nil {
		return nil, err
	}
	return boards, nil
}

func (s *Boards) FindByInviteCode(ctx context.Context, code string) (*models.Board, error) {
	var b models.Board
	db := s.db.WithContext(ctx)
	if err := db.Where("invite_code = ?", code).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.loadMembers(db, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update loads the row, applies the patch and saves the whole row in one
// transaction.
func (s *Boards) Update(ctx context.Context, boardID string, patch store.BoardPatch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.get(tx, boardID)
		if err != nil {
			return err
		}
		patch.Apply(b, now())
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		if patch.AddMemberID != "" {
			m := models.BoardMember{BoardID: boardID, UserID: patch.AddMemberID, Role: models.RoleMember, JoinedAt: now()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
				return err
			}
		}
		if patch.RemoveMemberID != "" && patch.RemoveMemberID != b.OwnerID {
			if err := tx.Where("board_id = ? AND user_id = ?", boardID, patch.RemoveMemberID).
				Delete(&models.BoardMember{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update board %s: %w", boardID, err)
	}
	s.publish(ctx, boardID)
	return nil
}

func (s *Boards) Delete(ctx context.Context, boardID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", boardID).Delete(&models.Board{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Where("board_id = ?", boardID).Delete(&models.BoardMember{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete board %s: %w", boardID, err)
	}
	s.publish(ctx, boardID)
	return nil
}

func (s *Boards) Subscribe(ctx context.Context, boardID string) (<-chan store.BoardSnapshot, error) {
	// Subscribe before the first read so no change between the two is lost.
	signals, cancel := s.feed.Subscribe(boardID)
	first, err := s.Get(ctx, boardID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan store.BoardSnapshot, 1)
	out <- store.BoardSnapshot{Board: first}
	go func() {
		defer close(out)
		defer cancel()
		logger := log.WithField("board", boardID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
			}
			b, err := s.Get(ctx, boardID)
			if ctx.Err() != nil {
				return
			}
			snap := store.BoardSnapshot{Board: b, Err: err}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				logger.WithError(err).Warn("gormstore: re-read after change failed")
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *Boards) publish(ctx context.Context, boardID string) {
	if err := s.feed.Publish(ctx, boardID); err != nil {
		log.WithError(err).WithField("board", boardID).Warn("gormstore: change not announced")
	}
}
