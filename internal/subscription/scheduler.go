// AngelaMos | 2026
// scheduler.go

package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type AttemptFunc func(ctx context.Context, userID string) (*Record, error)

// RetryScheduler re-syncs a user after a purchase on a fixed schedule of
// delays measured from scheduling time, stopping early once the expected
// plan is reflected. Pending retries live in memory only.
type RetryScheduler struct {
	delays  []time.Duration
	attempt AttemptFunc
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*retryJob
	nextID  uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type retryJob struct {
	id     uint64
	cancel context.CancelFunc
}

func NewRetryScheduler(
	delays []time.Duration,
	attempt AttemptFunc,
	logger *slog.Logger,
) *RetryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryScheduler{
		delays:  delays,
		attempt: attempt,
		logger:  logger,
		pending: make(map[string]*retryJob),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule starts a retry run for userID, replacing any run already pending
// for that user.
func (s *RetryScheduler) Schedule(userID string, expected Plan) {
	if len(s.delays) == 0 {
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.pending[userID]; ok {
		prev.cancel()
	}
	s.nextID++
	jobCtx, cancel := context.WithCancel(s.ctx)
	job := &retryJob{id: s.nextID, cancel: cancel}
	s.pending[userID] = job
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(jobCtx, job, userID, expected)
}

func (s *RetryScheduler) run(
	ctx context.Context,
	job *retryJob,
	userID string,
	expected Plan,
) {
	defer s.wg.Done()
	defer s.finish(userID, job)

	start := time.Now()
	for i, delay := range s.delays {
		timer := time.NewTimer(time.Until(start.Add(delay)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		record, err := s.attempt(ctx, userID)
		if err != nil {
			s.logger.Warn("entitlement retry failed",
				"user_id", userID,
				"attempt", i+1,
				"error", err,
			)
			continue
		}

		if record.Plan.AtLeast(expected) {
			s.logger.Info("purchase reflected after retry",
				"user_id", userID,
				"attempt", i+1,
				"plan", record.Plan,
			)
			return
		}
	}

	s.logger.Warn("purchase not reflected after retries",
		"user_id", userID,
		"expected_plan", expected,
		"attempts", len(s.delays),
	)
}

func (s *RetryScheduler) finish(userID string, job *retryJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.cancel()
	if current, ok := s.pending[userID]; ok && current.id == job.id {
		delete(s.pending, userID)
	}
}

// Pending reports whether a retry run is in flight for userID.
func (s *RetryScheduler) Pending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}

func (s *RetryScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown retry scheduler: %w", ctx.Err())
	}
}
