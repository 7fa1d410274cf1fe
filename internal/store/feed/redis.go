package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const DefaultChannel = "taskflow:board-changes"

type changeMessage struct {
	BoardID string `json:"boardId"`
}

// Redis shares change signals between API instances through a pub/sub
// channel. Deliveries are fanned out to local subscribers.
type Redis struct {
	rc      *redis.Client
	channel string
	local   *Local

	cancel    context.CancelFunc
	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

// NewRedis starts listening on channel. Close stops it.
func NewRedis(rc *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		rc:      rc,
		channel: channel,
		local:   NewLocal(),
		cancel:  cancel,
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
	go r.listen(ctx)
	return r
}

// Ready is closed once the first subscription is confirmed by the server.
func (r *Redis) Ready() <-chan struct{} { return r.ready }

func (r *Redis) Publish(ctx context.Context, boardID string) error {
	payload, err := json.Marshal(changeMessage{BoardID: boardID})
	if err != nil {
		return err
	}
	return r.rc.Publish(ctx, r.channel, payload).Err()
}

func (r *Redis) Subscribe(boardID string) (<-chan struct{}, func()) {
	return r.local.Subscribe(boardID)
}

func (r *Redis) Close() error {
	r.cancel()
	<-r.done
	return nil
}

func (r *Redis) listen(ctx context.Context) {
	defer close(r.done)
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("feed: subscribe failed, retrying")
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		r.readyOnce.Do(func() { close(r.ready) })

		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var m changeMessage
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil || m.BoardID == "" {
					log.WithField("payload", msg.Payload).Warn("feed: ignoring malformed change message")
					continue
				}
				r.local.notify(m.BoardID)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Error("feed: pubsub channel closed, reconnecting")
		if !sleep(ctx, time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
