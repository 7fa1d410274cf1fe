package boardsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

// fakeBoards serves one board. The test drives its subscription by hand
// and observes the writes sessions issue.
type fakeBoards struct {
	mu      sync.Mutex
	board   *models.Board
	subs    []chan store.BoardSnapshot
	writes  chan store.BoardPatch
	failErr error
	block   chan struct{}
}

func newFakeBoards(t *testing.T) *fakeBoards {
	t.Helper()
	return &fakeBoards{
		board: &models.Board{
			ID:         "board-1",
			Title:      "Sprint",
			OwnerID:    "u1",
			MemberIDs:  []string{"u1", "u2"},
			InviteCode: "AAAAAAAAAAAAAAAA",
			Data:       kanban.NewBoardData(),
		},
		writes: make(chan store.BoardPatch, 64),
	}
}

func (f *fakeBoards) Create(context.Context, *models.Board) error { return errors.New("not used") }

func (f *fakeBoards) Get(_ context.Context, boardID string) (*models.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.board == nil || boardID != f.board.ID {
		return nil, store.ErrNotFound
	}
	return f.board.Clone(), nil
}

func (f *fakeBoards) ListForMember(context.Context, string) ([]models.Board, error) { return nil, nil }

func (f *fakeBoards) FindByInviteCode(context.Context, string) (*models.Board, error) {
	return nil, store.ErrNotFound
}

func (f *fakeBoards) Update(_ context.Context, _ string, p store.BoardPatch) error {
	f.mu.Lock()
	block, failErr := f.block, f.failErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if failErr != nil {
		f.writes <- p
		return failErr
	}
	f.mu.Lock()
	p.Apply(f.board, kanban.Now())
	f.mu.Unlock()
	f.writes <- p
	return nil
}

func (f *fakeBoards) Delete(context.Context, string) error { return nil }

func (f *fakeBoards) Subscribe(ctx context.Context, boardID string) (<-chan store.BoardSnapshot, error) {
	b, err := f.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	ch := make(chan store.BoardSnapshot, 16)
	ch <- store.BoardSnapshot{Board: b}
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, nil
}

// push delivers a snapshot to every subscriber.
func (f *fakeBoards) push(snap store.BoardSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- snap
	}
}

// echo pushes the stored board back, as a store does after a write.
func (f *fakeBoards) echo() {
	f.mu.Lock()
	b := f.board.Clone()
	f.mu.Unlock()
	f.push(store.BoardSnapshot{Board: b})
}

func (f *fakeBoards) setFail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

func (f *fakeBoards) waitWrite(t *testing.T) store.BoardPatch {
	t.Helper()
	select {
	case p := <-f.writes:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no write issued")
	}
	return store.BoardPatch{}
}

type event struct {
	kind   string
	change Change
	err    error
}

type recordingNotifier struct {
	events chan event
}

func newRecorder() *recordingNotifier {
	return &recordingNotifier{events: make(chan event, 64)}
}

func (r *recordingNotifier) BoardChanged(c Change) { r.events <- event{kind: "changed", change: c} }

func (r *recordingNotifier) SyncError(_ string, err error) { r.events <- event{kind: "sync_error", err: err} }

func (r *recordingNotifier) BoardDeleted(string) { r.events <- event{kind: "deleted"} }

func (r *recordingNotifier) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	return event{}
}

func (r *recordingNotifier) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected notification %s", ev.kind)
	case <-time.After(d):
	}
}

func addCard(content string) Mutation {
	return func(b *models.Board) (models.BoardData, error) {
		data, _, err := kanban.AddCard(b.Data, "col-1", content, "")
		return data, err
	}
}

func openSession(t *testing.T, f *fakeBoards, rec *recordingNotifier, settle time.Duration) (*Session, *Metrics) {
	t.Helper()
	m := NewMetrics(nil)
	s, err := Open(context.Background(), f, "board-1", Options{Settle: settle, Metrics: m, Notifier: rec})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s, m
}
