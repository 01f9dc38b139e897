// AngelaMos | 2026
// handler.go

package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/middleware"
)

type Handler struct {
	reconciler *Reconciler
	validator  *validator.Validate
}

func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{
		reconciler: reconciler,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/subscription", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.Get)
		r.Post("/sync", h.Sync)
		r.Post("/purchases", h.ConfirmPurchase)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	view, err := h.reconciler.Get(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(view.Record, view.Stale))
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	record, err := h.reconciler.Sync(r.Context(), userID, TriggerExplicit)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(record, false))
}

func (h *Handler) ConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.reconciler.ConfirmPurchase(
		r.Context(),
		userID,
		ParsePlan(req.ExpectedPlan),
	)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	resp := PurchaseResponse{
		Subscription: ToSubscriptionResponse(result.Record, result.Pending),
		Pending:      result.Pending,
	}

	if result.Pending {
		core.Accepted(w, resp)
		return
	}
	core.OK(w, resp)
}

func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrSyncInconclusive) {
		core.JSONError(w, core.NewAppError(
			err,
			"billing provider did not answer; entitlements unchanged",
			http.StatusServiceUnavailable,
			"SYNC_INCONCLUSIVE",
		))
		return
	}
	core.InternalServerError(w, err)
}
