// AngelaMos | 2026
// rechecker.go

package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/socialsync/internal/config"
)

// Rechecker periodically re-syncs records whose billing period just ended
// and paid records that have gone stale, so renewals and lapses land even
// when no client asks.
type Rechecker struct {
	cron       *cron.Cron
	reconciler *Reconciler
	repo       Repository
	config     config.SubscriptionConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewRechecker(
	reconciler *Reconciler,
	repo Repository,
	cfg config.SubscriptionConfig,
	logger *slog.Logger,
) (*Rechecker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	rc := &Rechecker{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		reconciler: reconciler,
		repo:       repo,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}

	if _, err := rc.cron.AddFunc(cfg.RecheckSpec, rc.run); err != nil {
		return nil, fmt.Errorf("schedule subscription recheck %q: %w", cfg.RecheckSpec, err)
	}

	return rc, nil
}

func (rc *Rechecker) Start() {
	rc.cron.Start()
}

// Stop prevents new runs and waits for a running one to finish or ctx to
// expire.
func (rc *Rechecker) Stop(ctx context.Context) error {
	stopped := rc.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop rechecker: %w", ctx.Err())
	}
}

func (rc *Rechecker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	synced, failed, err := rc.RunOnce(ctx)
	if err != nil {
		rc.logger.Error("subscription recheck failed", "error", err)
		return
	}

	rc.logger.Info("subscription recheck complete",
		"synced", synced,
		"failed", failed,
	)
}

// RunOnce re-syncs one batch of due records.
func (rc *Rechecker) RunOnce(ctx context.Context) (synced, failed int, err error) {
	now := rc.now()

	userIDs, err := rc.repo.ListDueForRecheck(ctx, RecheckQuery{
		PeriodEndedAfter:  now.Add(-rc.config.RecheckWindow),
		PeriodEndedBefore: now,
		SyncedBefore:      now.Add(-rc.config.StaleAfter),
		Limit:             rc.config.RecheckBatch,
	})
	if err != nil {
		return 0, 0, err
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}

		if _, syncErr := rc.reconciler.Sync(ctx, userID, TriggerRecheck); syncErr != nil {
			failed++
			rc.logger.Warn("recheck sync failed",
				"user_id", userID,
				"error", syncErr,
			)
			continue
		}
		synced++
	}

	return synced, failed, nil
}
