package services

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

// Pusher delivers a push notification to one device token.
type Pusher interface {
	Push(ctx context.Context, token string, n *models.Notification) error
}

// sender is the part of *messaging.Client the FCM pusher needs.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client sender
}

// NewFCM wraps a messaging client. A nil client disables push.
func NewFCM(client *messaging.Client) *FCM {
	if client == nil {
		log.Info("FCM: no messaging client configured, push notifications disabled")
		return &FCM{}
	}
	log.Info("FCM: push notifications enabled")
	return &FCM{client: client}
}

func (p *FCM) Push(ctx context.Context, token string, n *models.Notification) error {
	if p == nil || p.client == nil || token == "" {
		return nil
	}
	_, err := p.client.Send(ctx, PushMessage(token, n))
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

// PushMessage builds the FCM payload for a stored notification.
func PushMessage(token string, n *models.Notification) *messaging.Message {
	data := map[string]string{
		"type":           string(n.Type),
		"notificationId": n.ID,
	}
	for k, v := range map[string]string{"boardId": n.BoardID, "cardId": n.CardID, "link": n.Link} {
		if v != "" {
			data[k] = v
		}
	}
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
	}
}

// pushToUser looks up the recipient's device token and pushes n.
// No-op if push is not configured or the user has no token.
func pushToUser(ctx context.Context, p Pusher, profiles store.Profiles, n *models.Notification) error {
	if p == nil || profiles == nil {
		return nil
	}
	profile, err := profiles.Get(ctx, n.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.Push(ctx, profile.FCMToken, n)
}
