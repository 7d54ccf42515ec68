package creations

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/respond"
)

type CreationResponse struct {
	ID          string  `json:"id"`
	Prompt      string  `json:"prompt"`
	Mode        string  `json:"mode"`
	Purchased   bool    `json:"purchased"`
	PurchasedAt *string `json:"purchased_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	HTML        string  `json:"html,omitempty"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.List(r.Context(), accountID)
	if err != nil {
		h.log.Error("list creations failed", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"list creations failed"}`, http.StatusInternalServerError)
		return
	}
	resp := make([]CreationResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, creationToResponse(c))
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid creation id"}`, http.StatusBadRequest)
		return
	}
	c, err := h.svc.Get(r.Context(), accountID, id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error":"creation not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get creation failed", "creation_id", id, "error", err)
		http.Error(w, `{"error":"get creation failed"}`, http.StatusInternalServerError)
		return
	}
	respond.JSON(w, http.StatusOK, creationToResponse(c))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid creation id"}`, http.StatusBadRequest)
		return
	}
	err = h.svc.Delete(r.Context(), accountID, id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error":"creation not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("delete creation failed", "creation_id", id, "error", err)
		http.Error(w, `{"error":"delete creation failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func creationToResponse(c *models.Creation) CreationResponse {
	out := CreationResponse{
		ID:        c.ID.String(),
		Prompt:    c.Prompt,
		Mode:      c.Mode,
		Purchased: c.Purchased,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		HTML:      c.HTML,
	}
	if c.PurchasedAt != nil {
		s := c.PurchasedAt.UTC().Format(time.RFC3339)
		out.PurchasedAt = &s
	}
	return out
}

