// AngelaMos | 2026
// entity.go

package subscription

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"
)

var ErrSyncInconclusive = errors.New("entitlement sync inconclusive")

type Plan string

const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
	PlanPro  Plan = "pro"
)

// planOrder is ascending; a plan's rank is its index.
var planOrder = []Plan{PlanFree, PlanPlus, PlanPro}

func ParsePlan(s string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(planOrder, p) {
		return p
	}
	return PlanFree
}

func (p Plan) Rank() int {
	if i := slices.Index(planOrder, p); i >= 0 {
		return i
	}
	return 0
}

func (p Plan) AtLeast(other Plan) bool {
	return p.Rank() >= other.Rank()
}

func BestPlan(plans ...Plan) Plan {
	best := PlanFree
	for _, p := range plans {
		if p.Rank() > best.Rank() {
			best = p
		}
	}
	return best
}

type Status string

const (
	StatusNone     Status = "none"
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusGrace    Status = "grace_period"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Entitling reports whether a subscription in this status grants its plan.
func (s Status) Entitling() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusGrace, StatusPastDue:
		return true
	default:
		return false
	}
}

type BillingCycle string

const (
	CycleNone    BillingCycle = ""
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

const (
	EntitlementSocialLinking      = "social_linking"
	EntitlementShareImport        = "share_import"
	EntitlementUnlimitedShares    = "unlimited_shares"
	EntitlementPriorityProcessing = "priority_processing"
)

func EntitlementsFor(plan Plan) []string {
	switch plan {
	case PlanPro:
		return []string{
			EntitlementSocialLinking,
			EntitlementShareImport,
			EntitlementUnlimitedShares,
			EntitlementPriorityProcessing,
		}
	case PlanPlus:
		return []string{EntitlementSocialLinking, EntitlementShareImport}
	default:
		return []string{}
	}
}

// Record is the system of record for a user's subscription. Only the
// Reconciler writes it.
type Record struct {
	UserID             string         `db:"user_id"              json:"user_id"`
	Plan               Plan           `db:"plan"                 json:"plan"`
	Status             Status         `db:"status"               json:"status"`
	BillingCycle       BillingCycle   `db:"billing_cycle"        json:"billing_cycle"`
	CurrentPeriodStart *time.Time     `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time     `db:"current_period_end"   json:"current_period_end"`
	CancelAtPeriodEnd  bool           `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	Entitlements       pq.StringArray `db:"entitlements"         json:"entitlements"`
	SyncedAt           time.Time      `db:"synced_at"            json:"synced_at"`
	UpdatedAt          time.Time      `db:"updated_at"           json:"updated_at"`
}

func FreeRecord(userID string) *Record {
	return &Record{
		UserID:       userID,
		Plan:         PlanFree,
		Status:       StatusNone,
		Entitlements: EntitlementsFor(PlanFree),
	}
}

// Snapshot is the billing provider's view of a user at one instant.
type Snapshot struct {
	Plan               Plan
	Status             Status
	BillingCycle       BillingCycle
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

func recordFromSnapshot(userID string, snap *Snapshot, now time.Time) *Record {
	plan := PlanFree
	if snap.Status.Entitling() {
		plan = snap.Plan
	}

	return &Record{
		UserID:             userID,
		Plan:               plan,
		Status:             snap.Status,
		BillingCycle:       snap.BillingCycle,
		CurrentPeriodStart: snap.CurrentPeriodStart,
		CurrentPeriodEnd:   snap.CurrentPeriodEnd,
		CancelAtPeriodEnd:  snap.CancelAtPeriodEnd,
		Entitlements:       EntitlementsFor(plan),
		SyncedAt:           now,
		UpdatedAt:          now,
	}
}
