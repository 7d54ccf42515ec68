// Package ledger is the single point of mutation for account balances and
// plan tiers. Every balance change and its credit_transactions entry are
// written in one database transaction.
package ledger

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
	"github.com/sketchcode/backend/internal/models"
)

type Service struct {
	db       database.Beginner
	accounts AccountStore
	txns     TransactionStore
	events   events.Publisher
	log      *slog.Logger
	now      func() time.Time
}

func NewService(db database.Beginner, accounts AccountStore, txns TransactionStore, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, accounts: accounts, txns: txns, events: pub, log: log, now: time.Now}
}

func creditReason(reason string) bool {
	switch reason {
	case models.CreditReasonInitialFree, models.CreditReasonOneOffPurchase, models.CreditReasonSubscriptionMonthly:
		return true
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// inTx runs fn in its own transaction and publishes evts after commit.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) ([]events.Event, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	evts, err := fn(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.Publish(ctx, evts...)
	return nil
}

// Publish emits events best-effort. Callers composing Tx variants call it
// after their own commit.
func (s *Service) Publish(ctx context.Context, evts ...events.Event) {
	events.PublishAll(ctx, s.events, s.log, evts...)
}

// GetBalance returns the current credit balance.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	acc, err := s.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Credits, nil
}

// Account returns the account with balance and plan window.
func (s *Service) Account(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, notFound(err)
	}
	return acc, nil
}

// AccountTx locks and returns the account row inside tx.
func (s *Service) AccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*models.Account, error) {
	acc, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, notFound(err)
	}
	return acc, nil
}

// History returns the account's log entries, newest first.
func (s *Service) History(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	if _, err := s.Account(ctx, accountID); err != nil {
		return nil, err
	}
	return s.txns.ListByAccountID(ctx, accountID)
}

func (s *Service) AddCredits(ctx context.Context, accountID uuid.UUID, amount int, reason string) (int, error) {
	var balance int
	err := s.inTx(ctx, func(tx pgx.Tx) ([]events.Event, error) {
		var err error
		balance, err = s.AddCreditsTx(ctx, tx, accountID, amount, reason)
		if err != nil {
			return nil, err
		}
		return []events.Event{CreditsAdded(accountID, amount, reason, balance)}, nil
	})
	return balance, err
}

// AddCreditsTx increments the balance and appends a +amount entry inside tx.
func (s *Service) AddCreditsTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if !creditReason(reason) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	balance, err := s.accounts.AddCredits(ctx, tx, accountID, amount)
	if err != nil {
		return 0, notFound(err)
	}
	entry := &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Change:       amount,
		Reason:       reason,
		BalanceAfter: balance,
	}
	if err := s.txns.CreateTx(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("append credit transaction: %w", err)
	}
	return balance, nil
}

// ConsumeCredit spends one credit for a download.
func (s *Service) ConsumeCredit(ctx context.Context, accountID uuid.UUID) (int, error) {
	var balance int
	err := s.inTx(ctx, func(tx pgx.Tx) ([]events.Event, error) {
		var err error
		balance, err = s.ConsumeCreditTx(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		return []events.Event{CreditConsumed(accountID, balance)}, nil
	})
	return balance, err
}

// ConsumeCreditTx decrements the balance by one with a floor at zero and
// appends a -1 DOWNLOAD entry inside tx. A zero balance yields
// *InsufficientCreditsError and leaves state untouched.
func (s *Service) ConsumeCreditTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int, error) {
	balance, err := s.accounts.DeductCredits(ctx, tx, accountID, 1)
	if errors.Is(err, pgx.ErrNoRows) {
		acc, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return 0, notFound(err)
		}
		return 0, &InsufficientCreditsError{Credits: acc.Credits}
	}
	if err != nil {
		return 0, err
	}
	entry := &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Change:       -1,
		Reason:       models.CreditReasonDownload,
		BalanceAfter: balance,
	}
	if err := s.txns.CreateTx(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("append credit transaction: %w", err)
	}
	return balance, nil
}

func (s *Service) SetPlan(ctx context.Context, accountID uuid.UUID, plan string, until *time.Time) error {
	return s.inTx(ctx, func(tx pgx.Tx) ([]events.Event, error) {
		if err := s.SetPlanTx(ctx, tx, accountID, plan, until); err != nil {
			return nil, err
		}
		return []events.Event{PlanChanged(accountID, plan, until)}, nil
	})
}

// SetPlanTx changes the plan tier inside tx. PRO requires until; entering
// PRO stamps pro_since, renewing keeps it. Other tiers clear the window.
func (s *Service) SetPlanTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, plan string, until *time.Time) error {
	if !models.ValidPlan(plan) {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	if plan == models.PlanPro && until == nil {
		return ErrInvalidPlanWindow
	}
	acc, err := s.AccountTx(ctx, tx, accountID)
	if err != nil {
		return err
	}
	var since *time.Time
	if plan == models.PlanPro {
		since = acc.ProSince
		if acc.Plan != models.PlanPro || since == nil {
			now := s.now().UTC()
			since = &now
		}
	} else {
		until = nil
	}
	return s.accounts.UpdatePlan(ctx, tx, accountID, plan, since, until)
}

// ProExpiryGrace is how long a lapsed PRO window is honoured before expiry.
// Card providers bill on calendar months, so a renewal can land a day or
// more after pro_until.
const ProExpiryGrace = 72 * time.Hour

// ExpirePro moves the account to PAY_PER_USE if it is still PRO and its
// window ended more than ProExpiryGrace before now. Credits are kept. It
// reports whether the plan changed; a renewal that landed after the caller
// listed the account wins.
func (s *Service) ExpirePro(ctx context.Context, accountID uuid.UUID, now time.Time) (bool, error) {
	expired := false
	err := s.inTx(ctx, func(tx pgx.Tx) ([]events.Event, error) {
		acc, err := s.AccountTx(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		if acc.Plan != models.PlanPro || acc.ProUntil == nil || !acc.ProUntil.Before(now.Add(-ProExpiryGrace)) {
			return nil, nil
		}
		if err := s.SetPlanTx(ctx, tx, accountID, models.PlanPayPerUse, nil); err != nil {
			return nil, err
		}
		expired = true
		return []events.Event{PlanChanged(accountID, models.PlanPayPerUse, nil)}, nil
	})
	return expired, err
}

func CreditsAdded(accountID uuid.UUID, amount int, reason string, balance int) events.Event {
	return events.Event{
		Type:       events.TypeCreditsAdded,
		AccountID:  accountID,
		Data:       map[string]any{"amount": amount, "reason": reason, "balance": balance},
		OccurredAt: time.Now().UTC(),
	}
}

func CreditConsumed(accountID uuid.UUID, balance int) events.Event {
	return events.Event{
		Type:       events.TypeCreditsConsumed,
		AccountID:  accountID,
		Data:       map[string]any{"amount": 1, "reason": models.CreditReasonDownload, "balance": balance},
		OccurredAt: time.Now().UTC(),
	}
}

func PlanChanged(accountID uuid.UUID, plan string, until *time.Time) events.Event {
	data := map[string]any{"plan": plan}
	if until != nil {
		data["pro_until"] = until.UTC()
	}
	return events.Event{Type: events.TypePlanChanged, AccountID: accountID, Data: data, OccurredAt: time.Now().UTC()}
}
