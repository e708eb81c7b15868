package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/jwulff/livehistory/internal/history"
)

// DeliverFunc receives the views produced for a Surface.
type DeliverFunc func(Result, error)

// Surface drives the syncs of one consuming view of an owner's history.
// Work runs in the background and results are handed to the deliver
// function. Once Close returns nothing more is delivered.
type Surface struct {
	coord   *Coordinator
	kind    history.Kind
	ownerID int64
	deliver DeliverFunc
	delay   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	// held while delivering so Close can wait out a delivery in progress
	deliverMu sync.Mutex
}

// NewSurface creates a Surface for one owner. deliver must not call Close.
func (c *Coordinator) NewSurface(kind history.Kind, ownerID int64, deliver DeliverFunc) *Surface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Surface{
		coord:   c,
		kind:    kind,
		ownerID: ownerID,
		deliver: deliver,
		delay:   c.config.RetryDelay,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Mount delivers the cached view and then the result of a refresh.
func (s *Surface) Mount() {
	s.start(func(ctx context.Context) {
		cached, err := s.coord.Cached(ctx, s.kind, s.ownerID)
		s.emit(cached, err)
		s.emit(s.coord.Refresh(ctx, s.kind, s.ownerID))
	})
}

// Refresh starts a refresh right away, as on pull-to-refresh.
func (s *Surface) Refresh() {
	s.start(func(ctx context.Context) {
		s.emit(s.coord.Refresh(ctx, s.kind, s.ownerID))
	})
}

// Activate schedules a refresh after the retry delay. Activating again
// before it fires pushes the refresh back instead of adding another.
func (s *Surface) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.Refresh)
}

// Close cancels the pending refresh and stops all further delivery.
// A sync already in flight completes in the background.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.cancel()

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
}

func (s *Surface) start(fn func(ctx context.Context)) {
	if s.isClosed() {
		return
	}
	go fn(s.ctx)
}

func (s *Surface) emit(res Result, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.isClosed() {
		return
	}
	s.deliver(res, err)
}

func (s *Surface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
