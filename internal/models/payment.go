package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase types attached to checkout sessions.
const (
	PurchaseOneOff       = "one-off"
	PurchaseSubscription = "subscription"
)

// Payment session statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// PaymentSession records a checkout started by an account. Its ID doubles as
// the order id for gateways that echo it back in notifications.
type PaymentSession struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"user_id"`
	Provider     string     `json:"provider"`
	PurchaseType string     `json:"purchase_type"`
	ProviderRef  string     `json:"provider_ref,omitempty"`
	Amount       int64      `json:"amount"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
