package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction reasons.
const (
	CreditReasonInitialFree         = "INITIAL_FREE"
	CreditReasonDownload            = "DOWNLOAD"
	CreditReasonOneOffPurchase      = "ONE_OFF_PURCHASE"
	CreditReasonSubscriptionMonthly = "SUBSCRIPTION_MONTHLY"
)

// CreditTransaction is one append-only entry of the credit ledger. Change is
// signed: grants are positive, downloads are -1.
type CreditTransaction struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"user_id"`
	Change       int       `json:"change"`
	Reason       string    `json:"reason"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
