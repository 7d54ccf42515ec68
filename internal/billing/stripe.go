package billing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"

	"github.com/sketchcode/backend/internal/models"
)

const ProviderStripe = "stripe"

// Stripe event types the reconciler acts on.
const (
	stripeCheckoutCompleted     = "checkout.session.completed"
	stripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	stripeInvoicePaid           = "invoice.paid"
	stripeSubscriptionDeleted   = "customer.subscription.deleted"
)

type StripeProvider struct {
	webhookSecret string
	newSession    func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return &StripeProvider{webhookSecret: webhookSecret, newSession: sc.New}
}

func (p *StripeProvider) Name() string { return ProviderStripe }

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	meta := map[string]string{
		"account_id":    req.AccountID.String(),
		"purchase_type": req.PurchaseType,
		"session_id":    req.SessionID.String(),
	}
	price := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(req.Amount),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(productName(req.PurchaseType)),
		},
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.AccountID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{PriceData: price, Quantity: stripe.Int64(1)},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	switch req.PurchaseType {
	case models.PurchaseOneOff:
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
	case models.PurchaseSubscription:
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		price.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
		// Renewal invoices carry the subscription's metadata, not the session's.
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurchase, req.PurchaseType)
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	s, err := p.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Checkout{URL: s.URL, ProviderRef: s.ID}, nil
}

func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	out := &Event{Provider: ProviderStripe, ID: evt.ID, Type: string(evt.Type), Kind: KindIgnored}
	if evt.Data == nil {
		return out, nil
	}
	obj := gjson.ParseBytes(evt.Data.Raw)

	var meta gjson.Result
	switch out.Type {
	case stripeCheckoutCompleted, stripeAsyncPaymentSucceeded:
		// Delayed payment methods complete the session unpaid and settle later.
		if obj.Get("payment_status").String() == "unpaid" {
			return out, nil
		}
		meta = obj.Get("metadata")
		out.Kind = KindCheckoutCompleted
	case stripeInvoicePaid:
		if obj.Get("billing_reason").String() != "subscription_cycle" {
			return out, nil
		}
		meta = obj.Get("parent.subscription_details.metadata")
		if !meta.Exists() {
			meta = obj.Get("subscription_details.metadata")
		}
		out.Kind = KindSubscriptionRenewed
	case stripeSubscriptionDeleted:
		meta = obj.Get("metadata")
		out.Kind = KindSubscriptionCancelled
	default:
		return out, nil
	}

	accountID, err := uuid.Parse(meta.Get("account_id").String())
	if err != nil {
		return nil, fmt.Errorf("stripe %s %s: missing account_id metadata", out.Type, evt.ID)
	}
	out.AccountID = accountID
	out.PurchaseType = meta.Get("purchase_type").String()
	if out.Kind == KindSubscriptionRenewed {
		out.PurchaseType = models.PurchaseSubscription
	}
	if sid, err := uuid.Parse(meta.Get("session_id").String()); err == nil && out.Kind == KindCheckoutCompleted {
		out.SessionID = sid
	}
	return out, nil
}

func productName(purchaseType string) string {
	if purchaseType == models.PurchaseSubscription {
		return "SketchCode PRO (monthly)"
	}
	return "SketchCode download credit"
}
