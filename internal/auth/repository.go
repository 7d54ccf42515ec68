package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/models"
)

// Store is the account persistence auth needs. repository.AccountRepo
// satisfies it. GetByEmail returns pgx.ErrNoRows for unknown emails and
// CreateTx surfaces the unique violation on users.email as a *pgconn.PgError.
type Store interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Ledger grants the signup credits inside the registration transaction.
type Ledger interface {
	AddCreditsTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, reason string) (int, error)
}
