// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
)

type EventSink interface {
	Dispatch(ctx context.Context, ev Event)
}

// Gateway serves the platform's subscription handshake and event deliveries.
type Gateway struct {
	secret        []byte
	verifyToken   string
	ownID         string
	maxBodyBytes  int64
	allowUnsigned bool
	sink          EventSink
	logger        *slog.Logger
}

func NewGateway(
	cfg config.WebhookConfig,
	allowUnsigned bool,
	sink EventSink,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		secret:        []byte(cfg.AppSecret),
		verifyToken:   cfg.VerifyToken,
		ownID:         cfg.OwnPlatformID,
		maxBodyBytes:  cfg.MaxBodyBytes,
		allowUnsigned: allowUnsigned,
		sink:          sink,
		logger:        logger,
	}
}

// RegisterRoutes mounts the gateway without request throttling. A valid
// delivery is always acknowledged; only rejected deliveries fail.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Route("/webhooks/instagram", func(r chi.Router) {
		r.Get("/", g.Handshake)
		r.Post("/", g.Receive)
	})
}

func (g *Gateway) Handshake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || g.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(g.verifyToken)) != 1 {
		g.logger.Warn("webhook handshake rejected", "mode", mode)
		core.JSONError(w, core.ForbiddenError("verification failed"))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response write
	_, _ = io.WriteString(w, challenge)
}

func (g *Gateway) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.RecordWebhookDelivery("too_large")
			core.JSONError(w, core.NewAppError(err, "payload too large",
				http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"))
			return
		}
		core.RecordWebhookDelivery("malformed")
		core.BadRequest(w, "unreadable body")
		return
	}

	if !g.allowUnsigned &&
		!VerifySignature(body, r.Header.Get(SignatureHeader), g.secret) {
		core.RecordWebhookDelivery("rejected")
		g.logger.Warn("webhook signature rejected",
			"remote_addr", r.RemoteAddr,
		)
		core.JSONError(w, core.NewAppError(nil, "signature verification failed",
			http.StatusUnauthorized, "VERIFICATION_FAILED"))
		return
	}

	events, err := Classify(body, g.ownID)
	if err != nil {
		core.RecordWebhookDelivery("malformed")
		core.JSONError(w, core.NewAppError(err, "malformed delivery",
			http.StatusBadRequest, "MALFORMED_DELIVERY"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "EVENT_RECEIVED"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	core.RecordWebhookDelivery("accepted")

	for _, ev := range events {
		g.sink.Dispatch(r.Context(), ev)
	}
}
