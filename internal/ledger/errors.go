package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidReason     = errors.New("invalid credit reason")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrInvalidPlanWindow = errors.New("PRO plan requires an expiry")

	// ErrInsufficientCredits matches any *InsufficientCreditsError via errors.Is.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// InsufficientCreditsError reports the balance observed when a consumption failed.
type InsufficientCreditsError struct {
	Credits int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d", e.Credits)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }
