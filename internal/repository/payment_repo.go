package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchcode/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, s *models.PaymentSession) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_sessions (id, user_id, provider, purchase_type, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, s.ID, s.AccountID, s.Provider, s.PurchaseType, s.Amount, s.Currency, s.Status).Scan(&s.CreatedAt)
}

// SetProviderRef stores the provider's own session id or token once checkout creation succeeds.
func (r *PaymentRepo) SetProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payment_sessions SET provider_ref = $2 WHERE id = $1`, id, ref)
	return err
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error) {
	var s models.PaymentSession
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, purchase_type, provider_ref, amount, currency, status, created_at, completed_at
		FROM payment_sessions WHERE id = $1
	`, id).Scan(&s.ID, &s.AccountID, &s.Provider, &s.PurchaseType, &s.ProviderRef, &s.Amount, &s.Currency, &s.Status, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkCompletedTx flags the session completed. Missing sessions are not an error:
// provider-initiated events (renewals) have no session row.
func (r *PaymentRepo) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE payment_sessions SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

func (r *PaymentRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.PaymentSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider, purchase_type, provider_ref, amount, currency, status, created_at, completed_at
		FROM payment_sessions WHERE user_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.PaymentSession{}
	for rows.Next() {
		var s models.PaymentSession
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Provider, &s.PurchaseType, &s.ProviderRef, &s.Amount, &s.Currency, &s.Status, &s.CreatedAt, &s.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
