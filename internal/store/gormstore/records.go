package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

type Activities struct {
	db *gorm.DB
}

func (s *Activities) Add(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		activityID, err := id.Generate("activity")
		if err != nil {
			return err
		}
		a.ID = activityID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Activities) List(ctx context.Context, q store.ActivityQuery) ([]models.Activity, error) {
	tx := s.db.WithContext(ctx).Where("board_id = ?", q.BoardID)
	if q.CardID != "" {
		tx = tx.Where("card_id = ?", q.CardID)
	}
	activities := []models.Activity{}
	err := tx.Order("created_at DESC").
		Limit(store.Limit(q.Limit, store.DefaultActivityLimit)).
		Find(&activities).Error
	return activities, err
}

type Notifications struct {
	db *gorm.DB
}

func (s *Notifications) Add(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		notificationID, err := id.Generate("notification")
		if err != nil {
			return err
		}
		n.ID = notificationID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Notifications) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(store.Limit(limit, store.DefaultNotificationLimit)).
		Find(&notifications).Error
	return notifications, err
}

func (s *Notifications) MarkRead(ctx context.Context, userID, notificationID string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return int(res.RowsAffected), res.Error
}

type Profiles struct {
	db *gorm.DB
}

func (s *Profiles) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Profiles) Upsert(ctx context.Context, uid string, patch models.ProfilePatch) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("uid = ?", uid).First(&p).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = models.UserProfile{UID: uid}
			patch.Apply(&p)
			p.UpdatedAt = now()
			return tx.Create(&p).Error
		case err != nil:
			return err
		}
		patch.Apply(&p)
		p.UpdatedAt = now()
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Profiles) GetMany(ctx context.Context, uids []string) (map[string]*models.UserProfile, error) {
	out := make(map[string]*models.UserProfile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var profiles []models.UserProfile
	if err := s.db.WithContext(ctx).Where("uid IN ?", uids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for i := range profiles {
		out[profiles[i].UID] = &profiles[i]
	}
	return out, nil
}
