// Package billing creates hosted checkout sessions with payment providers
// and turns their webhook notifications into provider-neutral events.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrVerificationFailed is returned when a webhook's authenticity cannot
	// be established. Nothing may be mutated for such a notification.
	ErrVerificationFailed = errors.New("webhook verification failed")
	ErrUnknownProvider    = errors.New("unknown payment provider")
	ErrInvalidPurchase    = errors.New("invalid purchase type")
)

// Kind classifies a provider notification.
type Kind string

const (
	KindCheckoutCompleted     Kind = "checkout_completed"
	KindSubscriptionRenewed   Kind = "subscription_renewed"
	KindSubscriptionCancelled Kind = "subscription_cancelled"
	KindIgnored               Kind = "ignored"
)

// Event is a verified, classified provider notification.
type Event struct {
	Provider     string
	ID           string
	Type         string
	Kind         Kind
	PurchaseType string
	AccountID    uuid.UUID
	// SessionID is the payment_sessions row the event settles, when known.
	SessionID uuid.UUID
}

// Key is the idempotency key recorded in processed_events.
func (e *Event) Key() string {
	return e.Provider + ":" + e.ID
}

type CheckoutRequest struct {
	SessionID    uuid.UUID
	AccountID    uuid.UUID
	Email        string
	PurchaseType string
	Amount       int64
	Currency     string
	SuccessURL   string
	CancelURL    string
}

type Checkout struct {
	URL         string
	ProviderRef string
}

type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// ParseWebhook verifies the raw body against the provider's signature
	// scheme and classifies it. Verification failures wrap ErrVerificationFailed.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry returns a registry whose default is the first provider given.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if r.fallback == "" {
			r.fallback = p.Name()
		}
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider, or the default one when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
