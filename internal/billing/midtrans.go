package billing

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/sketchcode/backend/internal/models"
)

const ProviderMidtrans = "midtrans"

// SessionLookup resolves a Midtrans order id back to the payment session
// that created it. Midtrans notifications carry no custom metadata.
type SessionLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error)
}

type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type MidtransProvider struct {
	serverKey string
	snap      snapCreator
	sessions  SessionLookup
}

func NewMidtransProvider(serverKey string, production bool, sessions SessionLookup) *MidtransProvider {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(serverKey, env)
	return &MidtransProvider{serverKey: serverKey, snap: &c, sessions: sessions}
}

func (p *MidtransProvider) Name() string { return ProviderMidtrans }

// CreateCheckout opens a Snap transaction. The order id is the payment
// session id so notifications can be resolved without metadata.
func (p *MidtransProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.PurchaseType != models.PurchaseOneOff && req.PurchaseType != models.PurchaseSubscription {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurchase, req.PurchaseType)
	}
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.SessionID.String(),
			GrossAmt: req.Amount,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Callbacks:  &snap.Callbacks{Finish: req.SuccessURL},
		CustomerDetail: &midtrans.CustomerDetails{
			Email: req.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{ID: req.PurchaseType, Price: req.Amount, Qty: 1, Name: productName(req.PurchaseType)},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}
	resp, midErr := p.snap.CreateTransaction(snapReq)
	if midErr != nil {
		return nil, fmt.Errorf("midtrans error: %v", midErr.GetMessage())
	}
	return &Checkout{URL: resp.RedirectURL, ProviderRef: resp.Token}, nil
}

type midtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	OrderID           string `json:"order_id"`
	FraudStatus       string `json:"fraud_status"`
	SignatureKey      string `json:"signature_key"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
}

// Signature computes SHA512(order_id + status_code + gross_amount + server_key).
func (p *MidtransProvider) Signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + p.serverKey))
	return hex.EncodeToString(sum[:])
}

func (p *MidtransProvider) ParseWebhook(ctx context.Context, payload []byte, _ http.Header) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", ErrVerificationFailed, err)
	}
	want := p.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		return nil, fmt.Errorf("%w: signature mismatch for order %s", ErrVerificationFailed, n.OrderID)
	}

	// One completion per order: capture and settlement of the same order share a key.
	out := &Event{Provider: ProviderMidtrans, ID: n.OrderID, Type: n.TransactionStatus, Kind: KindIgnored}
	switch n.TransactionStatus {
	case "settlement":
	case "capture":
		if n.FraudStatus != "" && n.FraudStatus != "accept" {
			return out, nil
		}
	default:
		return out, nil
	}

	sessionID, err := uuid.Parse(n.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order id %q is not ours", ErrVerificationFailed, n.OrderID)
	}
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown order %s", ErrVerificationFailed, n.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment session: %w", err)
	}
	if sess.Provider != ProviderMidtrans {
		return nil, fmt.Errorf("%w: order %s belongs to %s", ErrVerificationFailed, n.OrderID, sess.Provider)
	}
	if amt, err := strconv.ParseFloat(n.GrossAmount, 64); err != nil || int64(amt) != sess.Amount {
		return nil, fmt.Errorf("%w: gross amount %q does not match order %s", ErrVerificationFailed, n.GrossAmount, n.OrderID)
	}

	out.Kind = KindCheckoutCompleted
	out.AccountID = sess.AccountID
	out.PurchaseType = sess.PurchaseType
	out.SessionID = sess.ID
	return out, nil
}
