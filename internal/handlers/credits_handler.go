package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/respond"
)

// CreditsLedger is the read side of the ledger service.
type CreditsLedger interface {
	Account(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	History(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error)
}

// CreditsHandler serves /api/credits endpoints.
type CreditsHandler struct {
	Ledger CreditsLedger
	Logger *slog.Logger
}

type balanceResponse struct {
	Credits  int     `json:"credits"`
	Plan     string  `json:"plan"`
	ProUntil *string `json:"pro_until"`
}

type transactionResponse struct {
	ID           string `json:"id"`
	Change       int    `json:"change"`
	Reason       string `json:"reason"`
	BalanceAfter int    `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	acc, err := h.Ledger.Account(r.Context(), accountID)
	if err != nil {
		h.ledgerError(w, accountID, err)
		return
	}
	respond.JSON(w, http.StatusOK, balanceResponse{Credits: acc.Credits, Plan: acc.Plan, ProUntil: formatTime(acc.ProUntil)})
}

func (h *CreditsHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	list, err := h.Ledger.History(r.Context(), accountID)
	if err != nil {
		h.ledgerError(w, accountID, err)
		return
	}
	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, transactionResponse{
			ID:           t.ID.String(),
			Change:       t.Change,
			Reason:       t.Reason,
			BalanceAfter: t.BalanceAfter,
			CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *CreditsHandler) ledgerError(w http.ResponseWriter, accountID uuid.UUID, err error) {
	if errors.Is(err, ledger.ErrNotFound) {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	h.Logger.Error("credits lookup", "account_id", accountID, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
