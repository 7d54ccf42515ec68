package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/download"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/respond"
)

type DownloadGate interface {
	RequestDownload(ctx context.Context, accountID, creationID uuid.UUID) (*download.Result, error)
}

// DownloadHandler serves POST /api/download.
type DownloadHandler struct {
	Gate   DownloadGate
	Logger *slog.Logger
}

type downloadRequest struct {
	CreationID string `json:"creation_id"`
}

type downloadResponse struct {
	Success          bool   `json:"success"`
	HTML             string `json:"html"`
	CreditsRemaining int    `json:"credits_remaining"`
}

func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	creationID, err := uuid.Parse(req.CreationID)
	if err != nil {
		http.Error(w, `{"error":"invalid creation_id"}`, http.StatusBadRequest)
		return
	}

	res, err := h.Gate.RequestDownload(r.Context(), accountID, creationID)
	if err != nil {
		var insufficient *ledger.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			respond.JSON(w, http.StatusPaymentRequired, map[string]any{"error": "INSUFFICIENT_CREDITS", "credits": insufficient.Credits})
		case errors.Is(err, download.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
			http.Error(w, `{"error":"creation not found"}`, http.StatusNotFound)
		default:
			h.Logger.Error("download", "account_id", accountID, "creation_id", creationID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	respond.JSON(w, http.StatusOK, downloadResponse{Success: true, HTML: res.HTML, CreditsRemaining: res.CreditsRemaining})
}
