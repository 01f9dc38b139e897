// AngelaMos | 2026
// fakes_test.go

package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]Record)}
}

func (m *memoryRepo) Get(_ context.Context, userID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryRepo) Upsert(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[record.UserID]; ok &&
		existing.SyncedAt.After(record.SyncedAt) {
		return nil
	}
	m.records[record.UserID] = *record
	return nil
}

func (m *memoryRepo) ListDueForRecheck(
	_ context.Context,
	q RecheckQuery,
) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, rec := range m.records {
		ended := rec.CurrentPeriodEnd != nil &&
			!rec.CurrentPeriodEnd.Before(q.PeriodEndedAfter) &&
			!rec.CurrentPeriodEnd.After(q.PeriodEndedBefore) &&
			rec.SyncedAt.Before(*rec.CurrentPeriodEnd)
		stalePaid := rec.Plan != PlanFree && rec.SyncedAt.Before(q.SyncedBefore)
		if ended || stalePaid {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memoryCache struct {
	mu          sync.Mutex
	records     map[string]Record
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{records: make(map[string]Record)}
}

func (c *memoryCache) Get(_ context.Context, userID string) (*Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[userID]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (c *memoryCache) Set(_ context.Context, record *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[record.UserID] = *record
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, userID)
	c.invalidated++
	return nil
}

// scriptedProvider answers successive calls from a script; the last entry
// repeats.
type scriptedProvider struct {
	mu     sync.Mutex
	script []providerAnswer
	calls  int
}

type providerAnswer struct {
	snap  *Snapshot
	err   error
	block bool
}

func (p *scriptedProvider) FetchSubscription(
	ctx context.Context,
	_ string,
) (*Snapshot, error) {
	p.mu.Lock()
	i := min(p.calls, len(p.script)-1)
	p.calls++
	answer := p.script[i]
	p.mu.Unlock()

	if answer.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return answer.snap, answer.err
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func activeSnapshot(plan Plan) *Snapshot {
	end := time.Now().Add(30 * 24 * time.Hour)
	return &Snapshot{
		Plan:             plan,
		Status:           StatusActive,
		BillingCycle:     CycleMonthly,
		CurrentPeriodEnd: &end,
	}
}

func freeSnapshot() *Snapshot {
	return &Snapshot{Plan: PlanFree, Status: StatusNone}
}

func testConfig() config.SubscriptionConfig {
	return config.SubscriptionConfig{
		CacheTTL:        5 * time.Minute,
		StaleAfter:      time.Hour,
		RetryDelays:     []time.Duration{20 * time.Millisecond, 60 * time.Millisecond},
		ProviderTimeout: 50 * time.Millisecond,
		RecheckSpec:     "@every 1h",
		RecheckWindow:   24 * time.Hour,
		RecheckBatch:    10,
	}
}
