// AngelaMos | 2026
// memory_test.go

package linking_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/linking"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

type memoryRepo struct {
	mu       sync.Mutex
	requests map[string]*linking.LinkRequest
	accounts map[string]*linking.SocialAccount
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests: make(map[string]*linking.LinkRequest),
		accounts: make(map[string]*linking.SocialAccount),
	}
}

func (m *memoryRepo) Issue(_ context.Context, req *linking.LinkRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.requests {
		if r.State == linking.StateIssued && r.Platform == req.Platform &&
			r.CodeHash == req.CodeHash && r.UserID != req.UserID {
			return fmt.Errorf("insert link request: %w", core.ErrDuplicateKey)
		}
	}
	for _, r := range m.requests {
		if r.State == linking.StateIssued && r.UserID == req.UserID &&
			r.Platform == req.Platform {
			r.State = linking.StateRevoked
		}
	}

	stored := *req
	m.requests[req.ID] = &stored
	return nil
}

func (m *memoryRepo) FindIssuedByCode(
	_ context.Context,
	platform linking.Platform,
	codeHash string,
) (*linking.LinkRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.requests {
		if r.State == linking.StateIssued && r.Platform == platform &&
			r.CodeHash == codeHash {
			out := *r
			return &out, nil
		}
	}
	return nil, linking.ErrLinkNotFound
}

func (m *memoryRepo) MarkExpired(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.requests[id]; ok && r.State == linking.StateIssued {
		r.State = linking.StateExpired
	}
	return nil
}

func (m *memoryRepo) Consume(
	_ context.Context,
	requestID, platformUserID string,
	now time.Time,
) (*linking.LinkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok || req.State != linking.StateIssued {
		return nil, linking.ErrLinkNotFound
	}
	if req.ExpiredAt(now) {
		req.State = linking.StateExpired
		return nil, linking.ErrLinkExpired
	}

	var existing *linking.SocialAccount
	for _, a := range m.accounts {
		if a.Platform == req.Platform && a.PlatformUserID == platformUserID {
			existing = a
		}
	}
	if existing != nil && existing.UserID != req.UserID {
		return nil, linking.ErrLinkConflict
	}
	if held, ok := m.accounts[accountKey(req.UserID, req.Platform)]; ok &&
		held.PlatformUserID != platformUserID {
		return nil, linking.ErrUnlinkRequired
	}

	req.State = linking.StateConsumed
	req.ConsumedAt = &now
	req.PlatformUserID = &platformUserID

	if existing != nil {
		out := *existing
		return &linking.LinkResult{Status: linking.StatusAlreadyLinked, Account: &out}, nil
	}

	account := &linking.SocialAccount{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Platform:       req.Platform,
		PlatformUserID: platformUserID,
		LinkedAt:       now,
	}
	m.accounts[accountKey(req.UserID, req.Platform)] = account

	out := *account
	return &linking.LinkResult{Status: linking.StatusLinked, Account: &out}, nil
}

func (m *memoryRepo) Revoke(
	_ context.Context,
	userID string,
	platform linking.Platform,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, accountKey(userID, platform))
	for _, r := range m.requests {
		if r.State == linking.StateIssued && r.UserID == userID && r.Platform == platform {
			r.State = linking.StateRevoked
		}
	}
	return nil
}

func (m *memoryRepo) ListAccounts(
	_ context.Context,
	userID string,
) ([]linking.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := []linking.SocialAccount{}
	for _, a := range m.accounts {
		if a.UserID == userID {
			accounts = append(accounts, *a)
		}
	}
	return accounts, nil
}

func (m *memoryRepo) FindAccountByPlatformUser(
	_ context.Context,
	platform linking.Platform,
	platformUserID string,
) (*linking.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Platform == platform && a.PlatformUserID == platformUserID {
			out := *a
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memoryRepo) statesFor(userID string) map[linking.State]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[linking.State]int)
	for _, r := range m.requests {
		if r.UserID == userID {
			counts[r.State]++
		}
	}
	return counts
}

func accountKey(userID string, platform linking.Platform) string {
	return userID + "|" + string(platform)
}

type staticPlans struct {
	mu    sync.Mutex
	plans map[string]subscription.Plan
}

func newStaticPlans(entries map[string]subscription.Plan) *staticPlans {
	return &staticPlans{plans: entries}
}

func (p *staticPlans) PlanFor(_ context.Context, userID string) (subscription.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if plan, ok := p.plans[userID]; ok {
		return plan, nil
	}
	return subscription.PlanFree, nil
}

func (p *staticPlans) set(userID string, plan subscription.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[userID] = plan
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func sequence(codes ...string) func(int) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}
