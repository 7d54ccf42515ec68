// Package reconciler applies verified payment-provider events to the ledger
// exactly once.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/database"
	"github.com/sketchcode/backend/internal/events"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/models"
)

const (
	OneOffCredits       = 1
	SubscriptionCredits = 40
	ProPeriod           = 30 * 24 * time.Hour
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// EventStore records processed event keys. InsertTx returns false when the
// key already exists.
type EventStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, eventID, provider, eventType string) (bool, error)
}

type SessionStore interface {
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type Ledger interface {
	AccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*models.Account, error)
	AddCreditsTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, reason string) (int, error)
	SetPlanTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, plan string, until *time.Time) error
	Publish(ctx context.Context, evts ...events.Event)
}

type Service struct {
	db       database.Beginner
	events   EventStore
	sessions SessionStore
	ledger   Ledger
	log      *slog.Logger
	now      func() time.Time
}

func NewService(db database.Beginner, evts EventStore, sessions SessionStore, l Ledger, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, events: evts, sessions: sessions, ledger: l, log: log, now: time.Now}
}

// Handle applies evt. The processed-event claim and every ledger mutation
// share one transaction, so a replayed event is a no-op and a failed one
// leaves no trace and can be retried.
func (s *Service) Handle(ctx context.Context, evt *billing.Event) (Outcome, error) {
	log := s.log.With("provider", evt.Provider, "event_id", evt.ID, "event_type", evt.Type, "kind", evt.Kind)
	if evt.Kind == billing.KindIgnored {
		log.Debug("webhook event ignored")
		return OutcomeIgnored, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := s.events.InsertTx(ctx, tx, evt.Key(), evt.Provider, evt.Type)
	if err != nil {
		return "", fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		log.Info("duplicate webhook event")
		return OutcomeDuplicate, nil
	}

	published, err := s.apply(ctx, tx, evt)
	outcome := OutcomeApplied
	if errors.Is(err, ledger.ErrNotFound) {
		// Account deleted since checkout. Record the event so it stops retrying.
		log.Warn("webhook event for unknown account", "account_id", evt.AccountID)
		outcome, published, err = OutcomeIgnored, nil, nil
	}
	if err != nil {
		return "", err
	}
	if evt.SessionID != uuid.Nil {
		if err := s.sessions.MarkCompletedTx(ctx, tx, evt.SessionID); err != nil {
			return "", fmt.Errorf("complete payment session: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	s.ledger.Publish(ctx, published...)
	log.Info("webhook event processed", "account_id", evt.AccountID, "purchase_type", evt.PurchaseType, "outcome", outcome)
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, tx pgx.Tx, evt *billing.Event) ([]events.Event, error) {
	switch evt.Kind {
	case billing.KindCheckoutCompleted:
		switch evt.PurchaseType {
		case models.PurchaseOneOff:
			return s.creditOneOff(ctx, tx, evt.AccountID)
		case models.PurchaseSubscription:
			return s.startProPeriod(ctx, tx, evt.AccountID)
		default:
			return nil, fmt.Errorf("%s: unknown purchase type %q", evt.Key(), evt.PurchaseType)
		}
	case billing.KindSubscriptionRenewed:
		return s.startProPeriod(ctx, tx, evt.AccountID)
	case billing.KindSubscriptionCancelled:
		if err := s.ledger.SetPlanTx(ctx, tx, evt.AccountID, models.PlanFree, nil); err != nil {
			return nil, err
		}
		return []events.Event{ledger.PlanChanged(evt.AccountID, models.PlanFree, nil)}, nil
	default:
		return nil, fmt.Errorf("%s: unknown event kind %q", evt.Key(), evt.Kind)
	}
}

// creditOneOff adds one credit and moves FREE accounts to PAY_PER_USE.
func (s *Service) creditOneOff(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]events.Event, error) {
	acc, err := s.ledger.AccountTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.AddCreditsTx(ctx, tx, accountID, OneOffCredits, models.CreditReasonOneOffPurchase)
	if err != nil {
		return nil, err
	}
	out := []events.Event{ledger.CreditsAdded(accountID, OneOffCredits, models.CreditReasonOneOffPurchase, balance)}
	if acc.Plan == models.PlanFree {
		if err := s.ledger.SetPlanTx(ctx, tx, accountID, models.PlanPayPerUse, nil); err != nil {
			return nil, err
		}
		out = append(out, ledger.PlanChanged(accountID, models.PlanPayPerUse, nil))
	}
	return out, nil
}

// startProPeriod sets PRO for another period and grants the monthly credits.
func (s *Service) startProPeriod(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]events.Event, error) {
	until := s.now().UTC().Add(ProPeriod)
	if err := s.ledger.SetPlanTx(ctx, tx, accountID, models.PlanPro, &until); err != nil {
		return nil, err
	}
	balance, err := s.ledger.AddCreditsTx(ctx, tx, accountID, SubscriptionCredits, models.CreditReasonSubscriptionMonthly)
	if err != nil {
		return nil, err
	}
	return []events.Event{
		ledger.PlanChanged(accountID, models.PlanPro, &until),
		ledger.CreditsAdded(accountID, SubscriptionCredits, models.CreditReasonSubscriptionMonthly, balance),
	}, nil
}
