// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/socialsync/internal/core"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	ListDueForRecheck(ctx context.Context, q RecheckQuery) ([]string, error)
}

// RecheckQuery selects records whose billing period ended inside
// [PeriodEndedAfter, PeriodEndedBefore] without a sync since, plus paid
// records last synced before SyncedBefore.
type RecheckQuery struct {
	PeriodEndedAfter  time.Time
	PeriodEndedBefore time.Time
	SyncedBefore      time.Time
	Limit             int
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, userID string) (*Record, error) {
	query := `
		SELECT user_id, plan, status, billing_cycle, current_period_start,
		       current_period_end, cancel_at_period_end, entitlements,
		       synced_at, updated_at
		FROM subscriptions
		WHERE user_id = $1`

	var record Record
	err := r.db.GetContext(ctx, &record, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &record, nil
}

func (r *repository) Upsert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO subscriptions (
			user_id, plan, status, billing_cycle, current_period_start,
			current_period_end, cancel_at_period_end, entitlements, synced_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			plan                 = EXCLUDED.plan,
			status               = EXCLUDED.status,
			billing_cycle        = EXCLUDED.billing_cycle,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end   = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			entitlements         = EXCLUDED.entitlements,
			synced_at            = EXCLUDED.synced_at,
			updated_at           = NOW()
		WHERE subscriptions.synced_at <= EXCLUDED.synced_at
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &record.UpdatedAt, query,
		record.UserID,
		record.Plan,
		record.Status,
		record.BillingCycle,
		record.CurrentPeriodStart,
		record.CurrentPeriodEnd,
		record.CancelAtPeriodEnd,
		record.Entitlements,
		record.SyncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// A newer sync already landed; this snapshot is obsolete.
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

func (r *repository) ListDueForRecheck(
	ctx context.Context,
	q RecheckQuery,
) ([]string, error) {
	query := `
		SELECT user_id
		FROM subscriptions
		WHERE (current_period_end BETWEEN $1 AND $2
		       AND synced_at < current_period_end)
		   OR (plan <> 'free' AND synced_at < $3)
		ORDER BY synced_at ASC
		LIMIT $4`

	var userIDs []string
	if err := r.db.SelectContext(
		ctx,
		&userIDs,
		query,
		q.PeriodEndedAfter,
		q.PeriodEndedBefore,
		q.SyncedBefore,
		q.Limit,
	); err != nil {
		return nil, fmt.Errorf("list subscriptions due for recheck: %w", err)
	}

	return userIDs, nil
}
