package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/respond"
)

type AccountReader interface {
	Account(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

type CheckoutStarter interface {
	Start(ctx context.Context, account *models.Account, providerName, purchaseType string) (*billing.StartedCheckout, error)
}

// BillingHandler serves /api/billing/checkout/{purchase}.
type BillingHandler struct {
	Accounts AccountReader
	Checkout CheckoutStarter
	Logger   *slog.Logger
}

type checkoutRequest struct {
	Provider string `json:"provider"`
}

type checkoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
}

// OneOff starts a checkout for a single download credit.
func (h *BillingHandler) OneOff(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, models.PurchaseOneOff)
}

// Subscription starts a checkout for the monthly PRO plan.
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, models.PurchaseSubscription)
}

func (h *BillingHandler) start(w http.ResponseWriter, r *http.Request, purchaseType string) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	// The body is optional; an empty one selects the default provider.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	acc, err := h.Accounts.Account(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("checkout account lookup", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	co, err := h.Checkout.Start(r.Context(), acc, req.Provider, purchaseType)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownProvider), errors.Is(err, billing.ErrInvalidPurchase):
			respond.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("start checkout", "account_id", accountID, "purchase_type", purchaseType, "error", err)
			http.Error(w, `{"error":"failed to start checkout"}`, http.StatusBadGateway)
		}
		return
	}
	respond.JSON(w, http.StatusOK, checkoutResponse{URL: co.URL, SessionID: co.SessionID.String(), Provider: co.Provider})
}
