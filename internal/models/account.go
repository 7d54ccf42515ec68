package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan tiers.
const (
	PlanFree      = "FREE"
	PlanPayPerUse = "PAY_PER_USE"
	PlanPro       = "PRO"
)

// Roles carried in the JWT role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// SignupCredits is the balance every new account starts with.
const SignupCredits = 3

type Account struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Plan         string     `json:"plan"`
	Credits      int        `json:"credits"`
	ProSince     *time.Time `json:"pro_since,omitempty"`
	ProUntil     *time.Time `json:"pro_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ValidPlan reports whether p is one of the known plan tiers.
func ValidPlan(p string) bool {
	switch p {
	case PlanFree, PlanPayPerUse, PlanPro:
		return true
	}
	return false
}
