// AngelaMos | 2026
// meter.go

package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

const (
	counterTTL = 40 * 24 * time.Hour
	markerTTL  = 40 * 24 * time.Hour
)

type Outcome string

const (
	OutcomeCounted   Outcome = "counted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOverLimit Outcome = "over_limit"
)

// Snapshot is a user's usage for one calendar month. Limit is negative when
// the plan is unlimited.
type Snapshot struct {
	Period string
	Plan   subscription.Plan
	Used   int64
	Limit  int64
}

func (s Snapshot) Unlimited() bool {
	return s.Limit < 0
}

func (s Snapshot) Remaining() int64 {
	if s.Unlimited() {
		return -1
	}
	return max(s.Limit-s.Used, 0)
}

// Meter counts shared media per user per calendar month (UTC). Counting is
// idempotent per message id.
type Meter struct {
	rdb    redis.Cmdable
	limits map[subscription.Plan]int64
	now    func() time.Time
}

func NewMeter(rdb redis.Cmdable, cfg config.UsageConfig) *Meter {
	limits := make(map[subscription.Plan]int64, len(cfg.Limits))
	for name, limit := range cfg.Limits {
		limits[subscription.ParsePlan(name)] = int64(limit)
	}
	return &Meter{
		rdb:    rdb,
		limits: limits,
		now:    time.Now,
	}
}

func (m *Meter) WithClock(now func() time.Time) *Meter {
	m.now = now
	return m
}

func (m *Meter) limitFor(plan subscription.Plan) int64 {
	if limit, ok := m.limits[plan]; ok {
		return limit
	}
	return 0
}

func period(t time.Time) string {
	return t.UTC().Format("200601")
}

func counterKey(userID, period string) string {
	return fmt.Sprintf("usage:%s:%s", userID, period)
}

func markerKey(messageID string) string {
	return "usage:msg:" + messageID
}

// Consume records one share for messageID against userID's monthly
// allowance. A message already counted returns OutcomeDuplicate.
func (m *Meter) Consume(
	ctx context.Context,
	userID string,
	plan subscription.Plan,
	messageID string,
) (Outcome, Snapshot, error) {
	p := period(m.now())
	snap := Snapshot{Period: p, Plan: plan, Limit: m.limitFor(plan)}
	key := counterKey(userID, p)

	fresh, err := m.rdb.SetNX(ctx, markerKey(messageID), userID, markerTTL).Result()
	if err != nil {
		return "", snap, fmt.Errorf("claim usage marker: %w", err)
	}
	if !fresh {
		used, err := m.current(ctx, key)
		snap.Used = used
		return OutcomeDuplicate, snap, err
	}

	pipe := m.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		//nolint:errcheck // best-effort release so a retry can count
		_ = m.rdb.Del(ctx, markerKey(messageID)).Err()
		return "", snap, fmt.Errorf("increment usage: %w", err)
	}

	used := incr.Val()
	if !snap.Unlimited() && used > snap.Limit {
		if err := m.rdb.Decr(ctx, key).Err(); err != nil {
			return "", snap, fmt.Errorf("compensate usage: %w", err)
		}
		snap.Used = used - 1
		return OutcomeOverLimit, snap, nil
	}

	snap.Used = used
	return OutcomeCounted, snap, nil
}

func (m *Meter) Current(
	ctx context.Context,
	userID string,
	plan subscription.Plan,
) (Snapshot, error) {
	p := period(m.now())
	used, err := m.current(ctx, counterKey(userID, p))
	return Snapshot{
		Period: p,
		Plan:   plan,
		Used:   used,
		Limit:  m.limitFor(plan),
	}, err
}

func (m *Meter) current(ctx context.Context, key string) (int64, error) {
	used, err := m.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return used, nil
}
