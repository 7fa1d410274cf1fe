// Package feed signals "board changed" between the SQL store's writers and
// its subscribers. Signals carry no payload; subscribers re-read the board.
package feed

import (
	"context"
	"sync"
)

type Feed interface {
	Publish(ctx context.Context, boardID string) error
	// Subscribe returns a channel that receives at least one signal after
	// every Publish for boardID. Signals coalesce. cancel releases it.
	Subscribe(boardID string) (signals <-chan struct{}, cancel func())
	Close() error
}

// Local is an in-process feed.
type Local struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[chan struct{}]struct{})}
}

func (l *Local) Publish(_ context.Context, boardID string) error {
	l.notify(boardID)
	return nil
}

func (l *Local) notify(boardID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[boardID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (l *Local) Subscribe(boardID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	if l.subs[boardID] == nil {
		l.subs[boardID] = make(map[chan struct{}]struct{})
	}
	l.subs[boardID][ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs[boardID], ch)
			if len(l.subs[boardID]) == 0 {
				delete(l.subs, boardID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Local) Close() error { return nil }
