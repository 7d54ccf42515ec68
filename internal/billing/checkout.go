package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/models"
)

// SessionStore persists checkout attempts.
type SessionStore interface {
	Create(ctx context.Context, s *models.PaymentSession) error
	SetProviderRef(ctx context.Context, id uuid.UUID, ref string) error
}

type Price struct {
	Amount   int64
	Currency string
}

// Prices maps provider name to purchase type to price.
type Prices map[string]map[string]Price

type CheckoutService struct {
	providers  *Registry
	sessions   SessionStore
	prices     Prices
	successURL string
	cancelURL  string
	log        *slog.Logger
}

func NewCheckoutService(providers *Registry, sessions SessionStore, prices Prices, successURL, cancelURL string, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		providers:  providers,
		sessions:   sessions,
		prices:     prices,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        log,
	}
}

type StartedCheckout struct {
	URL       string    `json:"url"`
	SessionID uuid.UUID `json:"session_id"`
	Provider  string    `json:"provider"`
}

// Start records a pending payment session and asks the provider for a
// hosted checkout page. No ledger state is touched here.
func (s *CheckoutService) Start(ctx context.Context, account *models.Account, providerName, purchaseType string) (*StartedCheckout, error) {
	if purchaseType != models.PurchaseOneOff && purchaseType != models.PurchaseSubscription {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurchase, purchaseType)
	}
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	price, ok := s.prices[p.Name()][purchaseType]
	if !ok {
		return nil, fmt.Errorf("%w: no %s price for %s", ErrInvalidPurchase, purchaseType, p.Name())
	}

	sess := &models.PaymentSession{
		ID:           uuid.New(),
		AccountID:    account.ID,
		Provider:     p.Name(),
		PurchaseType: purchaseType,
		Amount:       price.Amount,
		Currency:     price.Currency,
		Status:       models.PaymentStatusPending,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	co, err := p.CreateCheckout(ctx, CheckoutRequest{
		SessionID:    sess.ID,
		AccountID:    account.ID,
		Email:        account.Email,
		PurchaseType: purchaseType,
		Amount:       price.Amount,
		Currency:     price.Currency,
		SuccessURL:   s.successURL,
		CancelURL:    s.cancelURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetProviderRef(ctx, sess.ID, co.ProviderRef); err != nil {
		// The checkout page exists already; the webhook carries what we need.
		s.log.Warn("store provider ref failed", "session_id", sess.ID, "error", err)
	}
	s.log.Info("checkout started", "account_id", account.ID, "provider", p.Name(), "purchase_type", purchaseType, "session_id", sess.ID)
	return &StartedCheckout{URL: co.URL, SessionID: sess.ID, Provider: p.Name()}, nil
}
