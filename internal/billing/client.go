// AngelaMos | 2026
// client.go

package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

const maxResponseBytes = 2 << 20

// Client reads a subscriber's entitlements from a RevenueCat-compatible
// REST API. It implements subscription.Provider.
type Client struct {
	baseURL    string
	apiKey     string
	planMap    map[string]subscription.Plan
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg config.BillingConfig) *Client {
	planMap := make(map[string]subscription.Plan, len(cfg.PlanMap))
	for entitlementID, plan := range cfg.PlanMap {
		planMap[entitlementID] = subscription.ParsePlan(plan)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		planMap: planMap,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements  map[string]entitlementInfo  `json:"entitlements"`
		Subscriptions map[string]subscriptionInfo `json:"subscriptions"`
	} `json:"subscriber"`
}

type entitlementInfo struct {
	ExpiresDate       *time.Time `json:"expires_date"`
	PurchaseDate      *time.Time `json:"purchase_date"`
	ProductIdentifier string     `json:"product_identifier"`
}

type subscriptionInfo struct {
	ExpiresDate             *time.Time `json:"expires_date"`
	PurchaseDate            *time.Time `json:"purchase_date"`
	PeriodType              string     `json:"period_type"`
	UnsubscribeDetectedAt   *time.Time `json:"unsubscribe_detected_at"`
	BillingIssuesDetectedAt *time.Time `json:"billing_issues_detected_at"`
	GracePeriodExpiresDate  *time.Time `json:"grace_period_expires_date"`
}

func (c *Client) FetchSubscription(
	ctx context.Context,
	userID string,
) (*subscription.Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("fetch subscriber: empty user id")
	}

	endpoint := c.baseURL + "/subscribers/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build subscriber request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch subscriber: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read subscriber response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf(
			"fetch subscriber: status=%d body=%s",
			resp.StatusCode,
			truncate(string(body), 256),
		)
	}

	var parsed subscriberResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode subscriber response: %w", err)
	}

	return c.snapshotFrom(&parsed), nil
}

// snapshotFrom resolves the best active entitlement to an internal plan.
// Unmapped entitlement identifiers are ignored.
func (c *Client) snapshotFrom(resp *subscriberResponse) *subscription.Snapshot {
	now := c.now()

	snap := &subscription.Snapshot{
		Plan:   subscription.PlanFree,
		Status: subscription.StatusNone,
	}

	var best *entitlementInfo
	bestPlan := subscription.PlanFree
	sawMapped := false

	for id, ent := range resp.Subscriber.Entitlements {
		plan, ok := c.planMap[id]
		if !ok {
			continue
		}
		sawMapped = true

		if ent.ExpiresDate != nil && !ent.ExpiresDate.After(now) {
			continue
		}

		if best == nil || subscription.BestPlan(bestPlan, plan) != bestPlan {
			entCopy := ent
			best = &entCopy
			bestPlan = plan
		}
	}

	if best == nil {
		if sawMapped {
			snap.Status = subscription.StatusExpired
		}
		return snap
	}

	snap.Plan = bestPlan
	snap.Status = subscription.StatusActive
	snap.CurrentPeriodStart = best.PurchaseDate
	snap.CurrentPeriodEnd = best.ExpiresDate

	sub, ok := resp.Subscriber.Subscriptions[best.ProductIdentifier]
	if !ok {
		return snap
	}

	switch {
	case sub.BillingIssuesDetectedAt != nil:
		snap.Status = subscription.StatusGrace
	case strings.EqualFold(sub.PeriodType, "trial"):
		snap.Status = subscription.StatusTrialing
	}

	snap.CancelAtPeriodEnd = sub.UnsubscribeDetectedAt != nil
	snap.BillingCycle = cycleFor(sub.PurchaseDate, sub.ExpiresDate)

	return snap
}

func cycleFor(start, end *time.Time) subscription.BillingCycle {
	if start == nil || end == nil {
		return subscription.CycleNone
	}

	days := end.Sub(*start).Hours() / 24
	switch {
	case days <= 8:
		return subscription.CycleWeekly
	case days <= 40:
		return subscription.CycleMonthly
	default:
		return subscription.CycleAnnual
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
