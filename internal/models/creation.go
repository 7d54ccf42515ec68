package models

import (
	"time"

	"github.com/google/uuid"
)

// Generation modes.
const (
	ModeSketch     = "sketch"
	ModeScreenshot = "screenshot"
	ModePrompt     = "prompt"
)

// Creation is a generated HTML artifact. Purchased flips to true once, when
// a download consumes a credit, and never reverts.
type Creation struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"user_id"`
	Prompt      string     `json:"prompt"`
	Mode        string     `json:"mode"`
	HTML        string     `json:"html,omitempty"`
	Purchased   bool       `json:"purchased"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
