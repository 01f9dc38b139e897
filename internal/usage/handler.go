// AngelaMos | 2026
// handler.go

package usage

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/middleware"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

type PlanReader interface {
	PlanFor(ctx context.Context, userID string) (subscription.Plan, error)
}

type Handler struct {
	meter *Meter
	plans PlanReader
}

func NewHandler(meter *Meter, plans PlanReader) *Handler {
	return &Handler{meter: meter, plans: plans}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/usage", h.Get)
}

type UsageResponse struct {
	Period    string            `json:"period"`
	Plan      subscription.Plan `json:"plan"`
	Used      int64             `json:"used"`
	Limit     *int64            `json:"limit"`
	Remaining *int64            `json:"remaining"`
}

func ToUsageResponse(s Snapshot) UsageResponse {
	resp := UsageResponse{
		Period: s.Period,
		Plan:   s.Plan,
		Used:   s.Used,
	}
	if !s.Unlimited() {
		limit, remaining := s.Limit, s.Remaining()
		resp.Limit = &limit
		resp.Remaining = &remaining
	}
	return resp
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	plan, err := h.plans.PlanFor(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	snap, err := h.meter.Current(r.Context(), userID, plan)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUsageResponse(snap))
}
