// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
)

const (
	TriggerPurchase = "purchase"
	TriggerRetry    = "retry"
	TriggerExplicit = "explicit"
	TriggerStale    = "stale"
	TriggerRecheck  = "recheck"
)

// Provider is the billing system's entitlement API.
type Provider interface {
	FetchSubscription(ctx context.Context, userID string) (*Snapshot, error)
}

// View is a possibly cached record with its freshness.
type View struct {
	Record *Record
	Stale  bool
}

type PurchaseResult struct {
	Record  *Record
	Pending bool
}

// Reconciler is the single writer of subscription records. It pulls the
// provider's state, persists it, and invalidates the read cache.
type Reconciler struct {
	repo      Repository
	cache     Cache
	provider  Provider
	scheduler *RetryScheduler
	config    config.SubscriptionConfig
	logger    *slog.Logger
	now       func() time.Time

	locksMu   sync.Mutex
	userLocks map[string]*userLock
	refreshes sync.Map

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func NewReconciler(
	repo Repository,
	cache Cache,
	provider Provider,
	cfg config.SubscriptionConfig,
	opts ...Option,
) *Reconciler {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	r := &Reconciler{
		repo:     repo,
		cache:    cache,
		provider: provider,
		config:   cfg,
		logger:   slog.Default(),
		now:      time.Now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,

		userLocks: make(map[string]*userLock),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.scheduler = NewRetryScheduler(cfg.RetryDelays, r.retryAttempt, r.logger)
	return r
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lockUser serializes syncs for one user. The entry is dropped once the
// last holder or waiter releases it.
func (r *Reconciler) lockUser(userID string) func() {
	r.locksMu.Lock()
	l, ok := r.userLocks[userID]
	if !ok {
		l = &userLock{}
		r.userLocks[userID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.userLocks, userID)
		}
		r.locksMu.Unlock()
	}
}

// Sync fetches the provider's current state for userID and makes it the
// persisted record. A provider failure or timeout returns
// ErrSyncInconclusive and leaves the stored record untouched.
func (r *Reconciler) Sync(
	ctx context.Context,
	userID, trigger string,
) (*Record, error) {
	ctx, span := core.StartSpan(ctx, "subscription.sync",
		attribute.String("user_id", userID),
		attribute.String("trigger", trigger),
	)
	defer span.End()

	unlock := r.lockUser(userID)
	defer unlock()

	record, err := r.syncLocked(ctx, userID)
	core.RecordEntitlementSync(trigger, err)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("plan", string(record.Plan)))
	return record, nil
}

func (r *Reconciler) syncLocked(ctx context.Context, userID string) (*Record, error) {
	providerCtx, cancel := context.WithTimeout(ctx, r.config.ProviderTimeout)
	snap, err := r.provider.FetchSubscription(providerCtx, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("sync subscription: %w: %w", ErrSyncInconclusive, err)
	}

	record := recordFromSnapshot(userID, snap, r.now())
	if err := r.repo.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("sync subscription: %w", err)
	}

	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.Warn("subscription cache invalidation failed",
			"user_id", userID,
			"error", err,
		)
	}

	return record, nil
}

// Get serves the cached record, falling back to the store. A stale record
// is returned as is and a background sync is started for it.
func (r *Reconciler) Get(ctx context.Context, userID string) (*View, error) {
	record, hit, err := r.cache.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("subscription cache read failed",
			"user_id", userID,
			"error", err,
		)
	}

	if !hit {
		record, err = r.repo.Get(ctx, userID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			record = FreeRecord(userID)
		case err != nil:
			return nil, err
		default:
			if setErr := r.cache.Set(ctx, record); setErr != nil {
				r.logger.Warn("subscription cache write failed",
					"user_id", userID,
					"error", setErr,
				)
			}
		}
	}

	stale := r.isStale(record)
	if stale {
		r.refreshInBackground(userID)
	}

	return &View{Record: record, Stale: stale}, nil
}

func (r *Reconciler) isStale(record *Record) bool {
	return record.SyncedAt.IsZero() ||
		r.now().Sub(record.SyncedAt) > r.config.StaleAfter
}

// PlanFor reads the persisted plan, bypassing the cache. A user with no
// record is on the free plan.
func (r *Reconciler) PlanFor(ctx context.Context, userID string) (Plan, error) {
	record, err := r.repo.Get(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return PlanFree, nil
	}
	if err != nil {
		return PlanFree, fmt.Errorf("read plan: %w", err)
	}
	return record.Plan, nil
}

// ConfirmPurchase runs one immediate sync after a client-reported purchase.
// When the provider does not yet reflect the expected plan, or the sync is
// inconclusive, the bounded retry schedule takes over and the result is
// marked pending.
func (r *Reconciler) ConfirmPurchase(
	ctx context.Context,
	userID string,
	expected Plan,
) (*PurchaseResult, error) {
	record, err := r.Sync(ctx, userID, TriggerPurchase)
	if err != nil && !errors.Is(err, ErrSyncInconclusive) {
		return nil, err
	}

	if err == nil && record.Plan.AtLeast(expected) {
		return &PurchaseResult{Record: record}, nil
	}

	if err != nil {
		r.logger.Warn("purchase sync inconclusive, scheduling retries",
			"user_id", userID,
			"error", err,
		)
	}

	r.scheduler.Schedule(userID, expected)

	if record == nil {
		view, getErr := r.Get(ctx, userID)
		if getErr != nil {
			return nil, getErr
		}
		record = view.Record
	}

	return &PurchaseResult{Record: record, Pending: true}, nil
}

func (r *Reconciler) retryAttempt(ctx context.Context, userID string) (*Record, error) {
	return r.Sync(ctx, userID, TriggerRetry)
}

func (r *Reconciler) refreshInBackground(userID string) {
	if r.bgCtx.Err() != nil {
		return
	}
	if _, running := r.refreshes.LoadOrStore(userID, struct{}{}); running {
		return
	}

	r.bgWG.Add(1)
	go func() {
		defer r.bgWG.Done()
		defer r.refreshes.Delete(userID)

		if _, err := r.Sync(r.bgCtx, userID, TriggerStale); err != nil {
			r.logger.Warn("background subscription refresh failed",
				"user_id", userID,
				"error", err,
			)
		}
	}()
}

// Close cancels pending retries and background refreshes and waits for
// them to return.
func (r *Reconciler) Close(ctx context.Context) error {
	r.bgCancel()
	schedErr := r.scheduler.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		r.bgWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return schedErr
	case <-ctx.Done():
		return fmt.Errorf("close reconciler: %w", ctx.Err())
	}
}
