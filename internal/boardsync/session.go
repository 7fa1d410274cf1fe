// Package boardsync keeps one live copy of a board per open session. Local
// edits are applied at once and written to the store in the background;
// remote snapshots are applied unless they are the echo of our own write.
package boardsync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

// ErrSessionClosed is returned for requests made after a session stopped.
var ErrSessionClosed = errors.New("board session closed")

const (
	// DefaultSettle is how long a written board stays armed for its echo.
	DefaultSettle       = 500 * time.Millisecond
	DefaultWriteTimeout = 15 * time.Second
)

// Origin says whether a change was made through this session or arrived
// from the store.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Change describes a new board state. Actor and ClientID are empty for
// remote changes; ClientID names the client that made a local change, if
// it sent one.
type Change struct {
	BoardID  string
	Board    *models.Board
	Origin   Origin
	Actor    string
	ClientID string
}

type clientIDKey struct{}

// WithClientID tags ctx with the id of the client making a change.
func WithClientID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientIDFrom returns the id set by WithClientID.
func ClientIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// Notifier receives session events. Methods are called from the session
// loop and must not block or call back into the session.
type Notifier interface {
	BoardChanged(c Change)
	SyncError(boardID string, err error)
	BoardDeleted(boardID string)
}

type nopNotifier struct{}

func (nopNotifier) BoardChanged(Change)     {}
func (nopNotifier) SyncError(string, error) {}
func (nopNotifier) BoardDeleted(string)     {}

// Mutation computes new board data from a copy of the current board.
// Returning kanban.ErrNoChange skips the write.
type Mutation func(b *models.Board) (models.BoardData, error)

// PatchFunc computes a write of board fields other than Data from a copy of
// the current board. Data in the returned patch is ignored.
type PatchFunc func(b *models.Board) (store.BoardPatch, error)

// ApplyResult holds the board before and after a request. Changed is false
// when the request left the board as it was.
type ApplyResult struct {
	Before  *models.Board
	After   *models.Board
	Changed bool
}

type Options struct {
	// Settle is how long the guard stays armed after a successful write.
	// Zero means DefaultSettle.
	Settle       time.Duration
	WriteTimeout time.Duration
	Metrics      *Metrics
	Notifier     Notifier
}

func (o Options) withDefaults() Options {
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	return o
}

type request struct {
	actor  string
	client string
	mutate Mutation
	patch  PatchFunc
	reply  chan reply
}

type reply struct {
	res ApplyResult
	err error
}

type writeReq struct {
	// gen is the guard generation armed for this write, 0 for patches.
	gen   uint64
	patch store.BoardPatch
	// reply is set for patches, whose callers wait for the outcome.
	reply chan reply
	res   ApplyResult
}

type writeResult struct {
	req *writeReq
	err error
}

// Session is the live copy of one board.
type Session struct {
	boardID string
	boards  store.Boards
	opts    Options
	logger  *log.Entry

	current  atomic.Pointer[models.Board]
	lastUsed atomic.Int64

	sub       <-chan store.BoardSnapshot
	cancelSub context.CancelFunc

	requests  chan request
	writeDone chan writeResult
	settled   chan uint64
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	err       error

	// Owned by the loop.
	guard   Guard
	queue   []*writeReq
	writing bool
	closing bool
}

// Open subscribes to boardID and returns once the first snapshot arrived.
func Open(ctx context.Context, boards store.Boards, boardID string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	subCtx, cancel := context.WithCancel(context.Background())
	sub, err := boards.Subscribe(subCtx, boardID)
	if err != nil {
		cancel()
		return nil, err
	}

	var first store.BoardSnapshot
	select {
	case snap, ok := <-sub:
		if !ok {
			cancel()
			return nil, ErrSessionClosed
		}
		first = snap
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
	if first.Err != nil {
		cancel()
		return nil, first.Err
	}

	s := &Session{
		boardID:   boardID,
		boards:    boards,
		opts:      opts,
		logger:    log.WithField("board", boardID),
		sub:       sub,
		cancelSub: cancel,
		requests:  make(chan request),
		writeDone: make(chan writeResult),
		settled:   make(chan uint64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.current.Store(first.Board)
	s.touch()
	opts.Metrics.SessionsOpen.Inc()
	go s.loop()
	return s, nil
}

func (s *Session) ID() string { return s.boardID }

// Current returns a copy of the latest local board.
func (s *Session) Current() *models.Board {
	s.touch()
	return s.current.Load().Clone()
}

// Apply runs m against the current board. The new state is visible through
// Current and the notifier before Apply returns; the store write happens
// afterwards in the background.
func (s *Session) Apply(ctx context.Context, actor string, m Mutation) (ApplyResult, error) {
	return s.do(ctx, request{actor: actor, client: ClientIDFrom(ctx), mutate: m})
}

// Patch applies a metadata change locally and waits for the store write.
// A failed write is returned but the local change is kept.
func (s *Session) Patch(ctx context.Context, actor string, p PatchFunc) (ApplyResult, error) {
	return s.do(ctx, request{actor: actor, client: ClientIDFrom(ctx), patch: p})
}

func (s *Session) do(ctx context.Context, req request) (ApplyResult, error) {
	s.touch()
	req.reply = make(chan reply, 1)
	select {
	case s.requests <- req:
	case <-s.done:
		return ApplyResult{}, ErrSessionClosed
	case <-ctx.Done():
		return ApplyResult{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-ctx.Done():
		return ApplyResult{}, ctx.Err()
	}
}

// Close stops the session after pending writes have been issued.
func (s *Session) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session stopped: store.ErrNotFound after the board
// was deleted, nil after Close.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) loop() {
	defer s.finish()
	stop := s.stop
	for {
		if s.closing && !s.writing && len(s.queue) == 0 {
			return
		}
		select {
		case req := <-s.requests:
			if s.closing {
				req.reply <- reply{err: ErrSessionClosed}
				continue
			}
			s.handleRequest(req)
		case snap, ok := <-s.sub:
			if !ok {
				s.sub = nil
				if !s.closing {
					s.err = ErrSessionClosed
					return
				}
				continue
			}
			if s.closing {
				continue
			}
			if s.handleSnapshot(snap) {
				return
			}
		case res := <-s.writeDone:
			s.handleWriteDone(res)
		case gen := <-s.settled:
			if s.guard.Release(gen) {
				s.logger.Debug("echo guard released")
			}
		case <-stop:
			stop = nil
			s.closing = true
			s.cancelSub()
		}
	}
}

func (s *Session) finish() {
	s.cancelSub()
	for _, w := range s.queue {
		if w.reply != nil {
			w.reply <- reply{res: w.res, err: ErrSessionClosed}
		}
	}
	s.queue = nil
	s.opts.Metrics.SessionsOpen.Dec()
	close(s.done)
}

func (s *Session) handleRequest(req request) {
	cur := s.current.Load()
	if req.mutate != nil {
		data, err := req.mutate(cur.Clone())
		if errors.Is(err, kanban.ErrNoChange) {
			req.reply <- reply{res: ApplyResult{Before: cur.Clone(), After: cur.Clone()}}
			return
		}
		if err == nil {
			err = kanban.Validate(data)
		}
		if err != nil {
			req.reply <- reply{err: err}
			return
		}

		next := cur.Clone()
		next.Data = data
		next.UpdatedAt = kanban.Now()
		s.current.Store(next)
		gen := s.guard.Arm(kanban.Hash(data))
		res := ApplyResult{Before: cur.Clone(), After: next.Clone(), Changed: true}
		s.opts.Notifier.BoardChanged(Change{BoardID: s.boardID, Board: next.Clone(), Origin: OriginLocal, Actor: req.actor, ClientID: req.client})
		s.enqueue(&writeReq{gen: gen, patch: store.BoardPatch{Data: &data}})
		req.reply <- reply{res: res}
		return
	}

	p, err := req.patch(cur.Clone())
	if errors.Is(err, kanban.ErrNoChange) {
		req.reply <- reply{res: ApplyResult{Before: cur.Clone(), After: cur.Clone()}}
		return
	}
	if err != nil {
		req.reply <- reply{err: err}
		return
	}
	p.Data = nil
	next := cur.Clone()
	p.Apply(next, kanban.Now())
	s.current.Store(next)
	res := ApplyResult{Before: cur.Clone(), After: next.Clone(), Changed: true}
	s.opts.Notifier.BoardChanged(Change{BoardID: s.boardID, Board: next.Clone(), Origin: OriginLocal, Actor: req.actor, ClientID: req.client})
	s.enqueue(&writeReq{patch: p, reply: req.reply, res: res})
}

// enqueue adds w to the write queue. A queued data write that has not
// started yet is replaced by a newer one, since each carries the whole data.
func (s *Session) enqueue(w *writeReq) {
	if n := len(s.queue); n > 0 && w.gen != 0 && s.queue[n-1].gen != 0 {
		s.queue[n-1] = w
	} else {
		s.queue = append(s.queue, w)
	}
	s.pump()
}

// pump starts the next write. At most one write is in flight so the store
// receives them in issue order.
func (s *Session) pump() {
	if s.writing || len(s.queue) == 0 {
		return
	}
	w := s.queue[0]
	s.queue = s.queue[1:]
	s.writing = true
	go s.write(w)
}

func (s *Session) write(w *writeReq) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	err := s.boards.Update(ctx, s.boardID, w.patch)
	cancel()
	select {
	case s.writeDone <- writeResult{req: w, err: err}:
	case <-s.done:
		if w.reply != nil {
			w.reply <- reply{res: w.res, err: err}
		}
	}
}

func (s *Session) handleWriteDone(res writeResult) {
	s.writing = false
	w := res.req
	if res.err != nil {
		s.opts.Metrics.WritesTotal.WithLabelValues("error").Inc()
		if w.gen != 0 && s.guard.Release(w.gen) {
			s.logger.Debug("echo guard released after failed write")
		}
		s.logger.WithError(res.err).Warn("board write failed")
		s.opts.Notifier.SyncError(s.boardID, res.err)
	} else {
		s.opts.Metrics.WritesTotal.WithLabelValues("ok").Inc()
		if w.gen != 0 && w.gen == s.guard.Generation() {
			gen := w.gen
			time.AfterFunc(s.opts.Settle, func() {
				select {
				case s.settled <- gen:
				case <-s.done:
				}
			})
		}
	}
	if w.reply != nil {
		w.reply <- reply{res: w.res, err: res.err}
	}
	s.pump()
}

// handleSnapshot applies a remote delivery and reports whether the session
// must stop.
func (s *Session) handleSnapshot(snap store.BoardSnapshot) bool {
	if snap.Err != nil {
		s.err = snap.Err
		if errors.Is(snap.Err, store.ErrNotFound) {
			s.logger.Info("board deleted, closing session")
			s.opts.Notifier.BoardDeleted(s.boardID)
			return true
		}
		s.logger.WithError(snap.Err).Error("board subscription failed")
		s.opts.Notifier.SyncError(s.boardID, snap.Err)
		return true
	}

	if s.guard.Suppresses(kanban.Hash(snap.Board.Data)) {
		s.opts.Metrics.EchoesSuppressed.Inc()
		cur := s.current.Load()
		if sameMetadata(cur, snap.Board) {
			s.logger.Debug("dropping echo of local write")
			return false
		}
		// Our data is echoed, but other fields changed elsewhere.
		next := snap.Board.Clone()
		next.Data = cur.Data.Clone()
		s.current.Store(next)
		s.logger.Debug("echo of local write carried remote metadata")
		s.opts.Notifier.BoardChanged(Change{BoardID: s.boardID, Board: next.Clone(), Origin: OriginRemote})
		return false
	}
	s.current.Store(snap.Board)
	s.opts.Metrics.RemoteApplied.Inc()
	s.opts.Notifier.BoardChanged(Change{BoardID: s.boardID, Board: snap.Board.Clone(), Origin: OriginRemote})
	return false
}

// sameMetadata compares every board field except Data and the timestamps.
func sameMetadata(a, b *models.Board) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.Color == b.Color &&
		a.OwnerID == b.OwnerID &&
		a.InviteCode == b.InviteCode &&
		a.IsArchived == b.IsArchived &&
		slices.Equal(a.MemberIDs, b.MemberIDs) &&
		slices.Equal(a.Labels, b.Labels) &&
		sameFlag(a.Settings.AllowMembersToEdit, b.Settings.AllowMembersToEdit) &&
		sameFlag(a.Settings.AllowMembersToInvite, b.Settings.AllowMembersToInvite)
}

func sameFlag(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
