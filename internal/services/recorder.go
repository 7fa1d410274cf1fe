package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

const DefaultRecordTimeout = 10 * time.Second

// Actor is the user a side effect is attributed to.
type Actor struct {
	ID    string
	Email string
}

// ActivityEntry describes one audit record. CardID and the value maps are optional.
type ActivityEntry struct {
	BoardID     string
	CardID      string
	Type        models.ActivityType
	Description string
	OldValue    map[string]any
	NewValue    map[string]any
	Metadata    map[string]any
}

// NotificationEntry is addressed to UserID.
type NotificationEntry struct {
	UserID  string
	Type    models.NotificationType
	Title   string
	Message string
	BoardID string
	CardID  string
}

// Recorder writes activities and notifications in the background.
// Failures are logged and never reach the caller.
type Recorder struct {
	activities    store.Activities
	notifications store.Notifications
	profiles      store.Profiles
	push          Pusher
	timeout       time.Duration

	wg sync.WaitGroup
}

// NewRecorder returns a recorder over s. push may be nil.
func NewRecorder(s *store.Store, push Pusher) *Recorder {
	return &Recorder{
		activities:    s.Activities,
		notifications: s.Notifications,
		profiles:      s.Profiles,
		push:          push,
		timeout:       DefaultRecordTimeout,
	}
}

// Activity records e for actor without blocking.
func (r *Recorder) Activity(actor Actor, e ActivityEntry) {
	r.goWithTimeout(func(ctx context.Context) {
		a := &models.Activity{
			BoardID:     e.BoardID,
			CardID:      e.CardID,
			Type:        e.Type,
			UserID:      actor.ID,
			UserEmail:   actor.Email,
			UserName:    r.displayName(ctx, actor.ID),
			Description: e.Description,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			Metadata:    e.Metadata,
		}
		if err := r.activities.Add(ctx, a); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"board": e.BoardID,
				"type":  e.Type,
			}).Error("Error creating activity")
		}
	})
}

// Notify addresses n to its user without blocking. Users are never
// notified about their own actions.
func (r *Recorder) Notify(actor Actor, n NotificationEntry) {
	if n.UserID == "" || n.UserID == actor.ID {
		return
	}
	r.goWithTimeout(func(ctx context.Context) {
		notif := &models.Notification{
			UserID:      n.UserID,
			Type:        n.Type,
			Title:       n.Title,
			Message:     n.Message,
			BoardID:     n.BoardID,
			CardID:      n.CardID,
			AuthorID:    actor.ID,
			AuthorEmail: actor.Email,
			Link:        models.NotificationLink(n.BoardID, n.CardID),
		}
		fields := log.Fields{"user": n.UserID, "type": n.Type}
		if err := r.notifications.Add(ctx, notif); err != nil {
			log.WithError(err).WithFields(fields).Error("Error creating notification")
			return
		}
		if err := pushToUser(ctx, r.push, r.profiles, notif); err != nil {
			log.WithError(err).WithFields(fields).Warn("FCM: failed to push notification")
		}
	})
}

// Wait blocks until every pending write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) goWithTimeout(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (r *Recorder) displayName(ctx context.Context, uid string) string {
	if r.profiles != nil {
		if p, err := r.profiles.Get(ctx, uid); err == nil {
			return p.Name()
		}
	}
	return models.ShortUID(uid)
}
