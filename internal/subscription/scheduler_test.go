// AngelaMos | 2026
// scheduler_test.go

package subscription

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySchedulerStopsWhenReflected(t *testing.T) {
	var calls atomic.Int32
	s := NewRetryScheduler(
		[]time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
		func(context.Context, string) (*Record, error) {
			calls.Add(1)
			return &Record{Plan: PlanPro}, nil
		},
		nil,
	)

	s.Schedule("u1", PlanPlus)

	require.Eventually(t, func() bool { return !s.Pending("u1") },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrySchedulerReplacesPendingRun(t *testing.T) {
	var calls atomic.Int32
	s := NewRetryScheduler(
		[]time.Duration{50 * time.Millisecond},
		func(context.Context, string) (*Record, error) {
			calls.Add(1)
			return &Record{Plan: PlanFree}, nil
		},
		nil,
	)

	s.Schedule("u1", PlanPlus)
	s.Schedule("u1", PlanPlus)

	require.Eventually(t, func() bool { return !s.Pending("u1") },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrySchedulerShutdownCancels(t *testing.T) {
	var calls atomic.Int32
	s := NewRetryScheduler(
		[]time.Duration{time.Hour},
		func(context.Context, string) (*Record, error) {
			calls.Add(1)
			return &Record{}, nil
		},
		nil,
	)

	s.Schedule("u1", PlanPlus)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, s.Pending("u1"))

	s.Schedule("u2", PlanPlus)
	assert.False(t, s.Pending("u2"))
}
