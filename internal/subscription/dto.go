// AngelaMos | 2026
// dto.go

package subscription

import (
	"time"
)

type PurchaseRequest struct {
	ExpectedPlan string `json:"expected_plan" validate:"required,oneof=plus pro"`
	ProductID    string `json:"product_id"    validate:"omitempty,max=200"`
}

type SubscriptionResponse struct {
	Plan               Plan         `json:"plan"`
	Status             Status       `json:"status"`
	BillingCycle       BillingCycle `json:"billing_cycle,omitempty"`
	CurrentPeriodStart *time.Time   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time   `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	Entitlements       []string     `json:"entitlements"`
	SyncedAt           *time.Time   `json:"synced_at,omitempty"`
	Stale              bool         `json:"stale"`
}

type PurchaseResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Pending      bool                 `json:"pending"`
}

func ToSubscriptionResponse(record *Record, stale bool) SubscriptionResponse {
	resp := SubscriptionResponse{
		Plan:               record.Plan,
		Status:             record.Status,
		BillingCycle:       record.BillingCycle,
		CurrentPeriodStart: record.CurrentPeriodStart,
		CurrentPeriodEnd:   record.CurrentPeriodEnd,
		CancelAtPeriodEnd:  record.CancelAtPeriodEnd,
		Entitlements:       record.Entitlements,
		Stale:              stale,
	}
	if resp.Entitlements == nil {
		resp.Entitlements = []string{}
	}
	if !record.SyncedAt.IsZero() {
		syncedAt := record.SyncedAt
		resp.SyncedAt = &syncedAt
	}
	return resp
}
