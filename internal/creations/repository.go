package creations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchcode/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, c *models.Creation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO creations (id, user_id, prompt, mode, html)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING purchased, created_at
	`, c.ID, c.AccountID, c.Prompt, c.Mode, c.HTML).Scan(&c.Purchased, &c.CreatedAt)
}

func scanCreation(row pgx.Row) (*models.Creation, error) {
	var c models.Creation
	err := row.Scan(&c.ID, &c.AccountID, &c.Prompt, &c.Mode, &c.HTML, &c.Purchased, &c.PurchasedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOwned returns the creation if it belongs to accountID.
func (r *Repository) GetOwned(ctx context.Context, id, accountID uuid.UUID) (*models.Creation, error) {
	return scanCreation(r.pool.QueryRow(ctx, `
		SELECT id, user_id, prompt, mode, html, purchased, purchased_at, created_at
		FROM creations WHERE id = $1 AND user_id = $2
	`, id, accountID))
}

// GetOwnedForUpdate locks the creation row. Call within a transaction.
func (r *Repository) GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, id, accountID uuid.UUID) (*models.Creation, error) {
	return scanCreation(tx.QueryRow(ctx, `
		SELECT id, user_id, prompt, mode, html, purchased, purchased_at, created_at
		FROM creations WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, accountID))
}

// MarkPurchasedTx flips purchased to true. A purchased creation is never reverted.
func (r *Repository) MarkPurchasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (time.Time, error) {
	var at time.Time
	err := tx.QueryRow(ctx, `
		UPDATE creations SET purchased = TRUE, purchased_at = now()
		WHERE id = $1 AND NOT purchased
		RETURNING purchased_at
	`, id).Scan(&at)
	return at, err
}

// ListByAccount returns the account's creations newest first, without HTML.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Creation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, prompt, mode, '' AS html, purchased, purchased_at, created_at
		FROM creations WHERE user_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Creation{}
	for rows.Next() {
		c, err := scanCreation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// DeleteOwned removes the creation if it belongs to accountID.
func (r *Repository) DeleteOwned(ctx context.Context, id, accountID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM creations WHERE id = $1 AND user_id = $2`, id, accountID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes any creation. Admin use only.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM creations WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Counts returns the number of creations and how many were purchased.
func (r *Repository) Counts(ctx context.Context) (total, purchased int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE purchased) FROM creations
	`).Scan(&total, &purchased)
	return total, purchased, err
}
