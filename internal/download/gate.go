// Package download unlocks generated creations in exchange for one credit.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/database"
	"github.com/sketchcode/backend/internal/events"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/models"
)

var ErrNotFound = errors.New("creation not found")

type CreationStore interface {
	GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, id, accountID uuid.UUID) (*models.Creation, error)
	MarkPurchasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (time.Time, error)
}

// Ledger is the part of the ledger service the gate needs.
type Ledger interface {
	ConsumeCreditTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (int, error)
	Publish(ctx context.Context, evts ...events.Event)
}

type Result struct {
	HTML             string
	CreditsRemaining int
	// Charged is false when the creation had already been purchased.
	Charged bool
}

type Gate struct {
	db        database.Beginner
	creations CreationStore
	ledger    Ledger
	log       *slog.Logger
}

func NewGate(db database.Beginner, creations CreationStore, l Ledger, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{db: db, creations: creations, ledger: l, log: log}
}

// RequestDownload returns the creation's HTML, charging one credit the first
// time. The credit consumption and the purchased flag commit together; on
// *ledger.InsufficientCreditsError nothing is written.
func (g *Gate) RequestDownload(ctx context.Context, accountID, creationID uuid.UUID) (*Result, error) {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := g.creations.GetOwnedForUpdate(ctx, tx, creationID, accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.Purchased {
		if err := tx.Rollback(ctx); err != nil {
			return nil, err
		}
		balance, err := g.ledger.GetBalance(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &Result{HTML: c.HTML, CreditsRemaining: balance}, nil
	}

	balance, err := g.ledger.ConsumeCreditTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if _, err := g.creations.MarkPurchasedTx(ctx, tx, c.ID); err != nil {
		return nil, fmt.Errorf("mark purchased: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	g.ledger.Publish(ctx, ledger.CreditConsumed(accountID, balance))
	g.log.Info("creation downloaded", "account_id", accountID, "creation_id", c.ID, "credits_remaining", balance)
	return &Result{HTML: c.HTML, CreditsRemaining: balance, Charged: true}, nil
}
