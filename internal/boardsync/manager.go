package boardsync

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

const DefaultIdleTimeout = 10 * time.Minute

type entry struct {
	ready chan struct{}
	s     *Session
	err   error
	refs  int
}

// Manager opens one session per board on demand and closes sessions nobody
// has used or held for the idle timeout.
type Manager struct {
	boards      store.Boards
	opts        Options
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

func NewManager(boards store.Boards, opts Options, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		boards:      boards,
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*entry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Session returns the open session for boardID, opening it if needed.
func (m *Manager) Session(ctx context.Context, boardID string) (*Session, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrSessionClosed
		}
		e, ok := m.sessions[boardID]
		if ok {
			m.mu.Unlock()
			select {
			case <-e.ready:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if e.err != nil {
				return nil, e.err
			}
			select {
			case <-e.s.Done():
				m.forget(boardID, e)
				continue
			default:
			}
			return e.s, nil
		}

		e = &entry{ready: make(chan struct{})}
		m.sessions[boardID] = e
		m.mu.Unlock()

		s, err := Open(ctx, m.boards, boardID, m.opts)
		m.mu.Lock()
		e.s, e.err = s, err
		if err != nil {
			delete(m.sessions, boardID)
		}
		m.mu.Unlock()
		close(e.ready)
		if err != nil {
			return nil, err
		}
		go m.watch(boardID, e)
		return s, nil
	}
}

// Acquire returns the session and keeps it open until release is called.
func (m *Manager) Acquire(ctx context.Context, boardID string) (*Session, func(), error) {
	for {
		s, err := m.Session(ctx, boardID)
		if err != nil {
			return nil, nil, err
		}
		m.mu.Lock()
		e, ok := m.sessions[boardID]
		if !ok || e.s != s {
			m.mu.Unlock()
			continue
		}
		e.refs++
		m.mu.Unlock()

		var once sync.Once
		return s, func() {
			once.Do(func() {
				m.mu.Lock()
				e.refs--
				m.mu.Unlock()
				s.touch()
			})
		}, nil
	}
}

// Apply runs a data mutation on boardID's session.
func (m *Manager) Apply(ctx context.Context, boardID, actor string, mut Mutation) (ApplyResult, error) {
	return m.retry(ctx, boardID, func(s *Session) (ApplyResult, error) {
		return s.Apply(ctx, actor, mut)
	})
}

// Patch runs a metadata write on boardID's session.
func (m *Manager) Patch(ctx context.Context, boardID, actor string, p PatchFunc) (ApplyResult, error) {
	return m.retry(ctx, boardID, func(s *Session) (ApplyResult, error) {
		return s.Patch(ctx, actor, p)
	})
}

// Current returns the live board.
func (m *Manager) Current(ctx context.Context, boardID string) (*models.Board, error) {
	s, err := m.Session(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return s.Current(), nil
}

// retry reopens once when the session closed under the caller.
func (m *Manager) retry(ctx context.Context, boardID string, fn func(*Session) (ApplyResult, error)) (ApplyResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		s, err := m.Session(ctx, boardID)
		if err != nil {
			return ApplyResult{}, err
		}
		res, err := fn(s)
		if !errors.Is(err, ErrSessionClosed) {
			return res, err
		}
		if s.Err() != nil {
			return res, s.Err()
		}
		lastErr = err
	}
	return ApplyResult{}, lastErr
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session, waiting for their pending writes.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = map[string]*entry{}
	m.mu.Unlock()

	close(m.stopJanitor)
	<-m.janitorDone

	var firstErr error
	for _, e := range entries {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		if e.s == nil {
			continue
		}
		if err := e.s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) watch(boardID string, e *entry) {
	<-e.s.Done()
	m.forget(boardID, e)
}

func (m *Manager) forget(boardID string, e *entry) {
	m.mu.Lock()
	if m.sessions[boardID] == e {
		delete(m.sessions, boardID)
	}
	m.mu.Unlock()
}

func (m *Manager) janitor() {
	defer close(m.janitorDone)
	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopJanitor:
			return
		case now := <-ticker.C:
			m.closeIdle(now)
		}
	}
}

func (m *Manager) closeIdle(now time.Time) {
	var idle []*Session
	m.mu.Lock()
	for boardID, e := range m.sessions {
		if e.s == nil || e.refs > 0 {
			continue
		}
		if now.Sub(e.s.idleSince()) >= m.idleTimeout {
			delete(m.sessions, boardID)
			idle = append(idle, e.s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.WriteTimeout)
		if err := s.Close(ctx); err != nil {
			log.WithError(err).WithField("board", s.ID()).Warn("closing idle session")
		}
		cancel()
	}
}
