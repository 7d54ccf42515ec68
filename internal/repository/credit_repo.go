package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchcode/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, change, reason, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, c.ID, c.AccountID, c.Change, c.Reason, c.BalanceAfter).Scan(&c.CreatedAt)
}

func scanCreditRows(rows pgx.Rows) ([]*models.CreditTransaction, error) {
	defer rows.Close()
	list := []*models.CreditTransaction{}
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Change, &c.Reason, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *CreditRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, change, reason, balance_after, created_at
		FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return scanCreditRows(rows)
}

// ListBetween returns every entry created in [from, to), oldest first.
func (r *CreditRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, change, reason, balance_after, created_at
		FROM credit_transactions WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanCreditRows(rows)
}

// BalanceDrift is an account whose stored balance disagrees with its ledger.
type BalanceDrift struct {
	AccountID uuid.UUID
	Credits   int
	LedgerSum int
}

// ListDrift returns accounts where credits != SUM(change).
func (r *CreditRepo) ListDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.credits, COALESCE(SUM(t.change), 0)::int
		FROM users u
		LEFT JOIN credit_transactions t ON t.user_id = u.id
		GROUP BY u.id, u.credits
		HAVING u.credits <> COALESCE(SUM(t.change), 0)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Credits, &d.LedgerSum); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TotalsByReason sums changes per reason across all accounts.
func (r *CreditRepo) TotalsByReason(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT reason, COALESCE(SUM(change), 0)::int FROM credit_transactions GROUP BY reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var reason string
		var sum int
		if err := rows.Scan(&reason, &sum); err != nil {
			return nil, err
		}
		out[reason] = sum
	}
	return out, rows.Err()
}
