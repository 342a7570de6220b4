package verification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRecoveryTick is how often the scheduler sweeps the store for overdue windows
// that no timer is holding, e.g. after a restart.
const DefaultRecoveryTick = time.Second

// Scheduler fires AutoVerify at each window deadline.
type Scheduler struct {
	workflow     *Workflow
	recoveryTick time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	ctx    context.Context
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(w *Workflow, recoveryTick time.Duration) *Scheduler {
	if recoveryTick <= 0 {
		recoveryTick = DefaultRecoveryTick
	}
	s := &Scheduler{
		workflow:     w,
		recoveryTick: recoveryTick,
		logger:       w.logger,
		timers:       make(map[uuid.UUID]*time.Timer),
		ctx:          context.Background(),
	}
	w.NotifyDeadlines(s)
	return s
}

// Schedule arms a one-shot timer for orderID. Re-scheduling replaces the earlier timer.
func (s *Scheduler) Schedule(orderID uuid.UUID, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if t, ok := s.timers[orderID]; ok {
		t.Stop()
	}
	delay := deadline.Sub(s.workflow.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[orderID] = time.AfterFunc(delay, func() { s.fire(orderID) })
}

// Pending returns how many timers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(orderID uuid.UUID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, orderID)
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	v, err := s.workflow.AutoVerify(ctx, orderID)
	if err != nil {
		s.logger.Error("deadline auto-verify failed", "order_id", orderID, "error", err)
		return
	}
	// a timer that fired a little early leaves the record open; the sweep picks it up
	if !v.State.IsTerminal() {
		s.logger.Debug("deadline fired before window elapsed", "order_id", orderID)
	}
}

// Run sweeps for overdue windows until ctx is cancelled, then stops every timer.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.sweep(ctx)

	ticker := time.NewTicker(s.recoveryTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.workflow.AutoVerifyDue(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "recovery sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "recovery sweep auto-verified orders", "count", n)
	}
}

// Close stops all armed timers and waits for in-flight deadlines to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
