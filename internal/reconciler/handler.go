package reconciler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sketchcode/backend/internal/billing"
)

// maxWebhookBody bounds the raw notification read before verification.
const maxWebhookBody = 1 << 20

type Handler struct {
	svc       *Service
	providers *billing.Registry
	log       *slog.Logger
}

func NewHandler(svc *Service, providers *billing.Registry, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, providers: providers, log: log}
}

// Webhook returns the handler for one provider's notifications. The body is
// verified before anything else; unverifiable requests get 400 and no
// mutation, processing failures get 500 so the provider retries.
func (h *Handler) Webhook(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.providers.Get(provider)
		if err != nil {
			http.Error(w, `{"error":"payment provider not configured"}`, http.StatusNotFound)
			return
		}
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
			return
		}

		evt, err := p.ParseWebhook(r.Context(), payload, r.Header)
		if err != nil {
			if errors.Is(err, billing.ErrVerificationFailed) {
				h.log.Warn("webhook verification failed", "provider", provider, "error", err)
				http.Error(w, `{"error":"webhook verification failed"}`, http.StatusBadRequest)
				return
			}
			h.log.Error("webhook parse failed", "provider", provider, "error", err)
			http.Error(w, `{"error":"malformed webhook event"}`, http.StatusBadRequest)
			return
		}

		outcome, err := h.svc.Handle(r.Context(), evt)
		if err != nil {
			h.log.Error("webhook processing failed", "provider", provider, "event_id", evt.ID, "error", err)
			http.Error(w, `{"error":"webhook processing failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"received": true, "outcome": outcome})
	}
}
