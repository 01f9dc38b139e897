// AngelaMos | 2026
// meter_test.go

package usage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

func newTestMeter(t *testing.T) (*Meter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	meter := NewMeter(client, config.UsageConfig{
		Limits: map[string]int{"free": 2, "plus": 50, "pro": -1},
	}).WithClock(func() time.Time { return now })

	return meter, mr
}

func TestMeterCountsOncePerMessage(t *testing.T) {
	meter, mr := newTestMeter(t)
	ctx := t.Context()

	outcome, snap, err := meter.Consume(ctx, "u1", subscription.PlanPlus, "mid.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCounted, outcome)
	assert.Equal(t, int64(1), snap.Used)
	assert.Equal(t, "202606", snap.Period)

	outcome, snap, err = meter.Consume(ctx, "u1", subscription.PlanPlus, "mid.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, int64(1), snap.Used)

	got, err := mr.Get("usage:u1:202606")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestMeterEnforcesPlanLimit(t *testing.T) {
	meter, _ := newTestMeter(t)
	ctx := t.Context()

	for _, mid := range []string{"a", "b"} {
		outcome, _, err := meter.Consume(ctx, "u1", subscription.PlanFree, mid)
		require.NoError(t, err)
		require.Equal(t, OutcomeCounted, outcome)
	}

	outcome, snap, err := meter.Consume(ctx, "u1", subscription.PlanFree, "c")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOverLimit, outcome)
	assert.Equal(t, int64(2), snap.Used)
	assert.Zero(t, snap.Remaining())

	current, err := meter.Current(ctx, "u1", subscription.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Used)
}

func TestMeterUnlimitedPlan(t *testing.T) {
	meter, _ := newTestMeter(t)
	ctx := t.Context()

	for i := range 10 {
		outcome, _, err := meter.Consume(ctx, "u1", subscription.PlanPro, string(rune('a'+i)))
		require.NoError(t, err)
		require.Equal(t, OutcomeCounted, outcome)
	}

	current, err := meter.Current(ctx, "u1", subscription.PlanPro)
	require.NoError(t, err)
	assert.True(t, current.Unlimited())
	assert.Equal(t, int64(10), current.Used)
	assert.Equal(t, int64(-1), current.Remaining())
}

func TestMeterCurrentEmpty(t *testing.T) {
	meter, _ := newTestMeter(t)

	current, err := meter.Current(t.Context(), "nobody", subscription.PlanFree)
	require.NoError(t, err)
	assert.Zero(t, current.Used)
	assert.Equal(t, int64(2), current.Limit)
}
