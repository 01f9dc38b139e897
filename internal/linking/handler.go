// AngelaMos | 2026
// handler.go

package linking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	issueLimiter func(http.Handler) http.Handler,
) {
	r.Route("/links", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.With(issueLimiter).Post("/{platform}/code", h.IssueCode)
		r.Delete("/{platform}", h.Unlink)
	})
}

func (h *Handler) IssueCode(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	platform, err := ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		core.JSONError(w, AsAppError(err))
		return
	}

	issued, err := h.service.Issue(r.Context(), userID, platform)
	if err != nil {
		core.JSONError(w, AsAppError(err))
		return
	}

	core.Created(w, ToIssueCodeResponse(issued))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountListResponse(accounts))
}

func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	platform, err := ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		core.JSONError(w, AsAppError(err))
		return
	}

	if err := h.service.Revoke(r.Context(), userID, platform); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
