package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/database/dbtest"
	"github.com/sketchcode/backend/internal/events"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/ledger/ledgertest"
	"github.com/sketchcode/backend/internal/models"
)

type memEvents struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memEvents) InsertTx(_ context.Context, _ pgx.Tx, id, _, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

type memSessions struct {
	mu        sync.Mutex
	completed []uuid.UUID
}

func (m *memSessions) MarkCompletedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, id)
	return nil
}

type countingPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *countingPublisher) Publish(context.Context, events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return nil
}

type fixture struct {
	svc      *Service
	ledger   *ledger.Service
	accounts *ledgertest.Accounts
	txns     *ledgertest.Transactions
	events   *memEvents
	sessions *memSessions
	db       *dbtest.Beginner
	pub      *countingPublisher
	now      time.Time
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFixture(t *testing.T, accs ...*models.Account) *fixture {
	t.Helper()
	f := &fixture{
		accounts: ledgertest.NewAccounts(),
		txns:     &ledgertest.Transactions{},
		events:   &memEvents{},
		sessions: &memSessions{},
		db:       &dbtest.Beginner{},
		pub:      &countingPublisher{},
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, a := range accs {
		f.accounts.Put(a)
		if a.Credits > 0 {
			f.txns.CreateTx(context.Background(), nil, &models.CreditTransaction{
				ID: uuid.New(), AccountID: a.ID, Change: a.Credits, Reason: models.CreditReasonInitialFree, BalanceAfter: a.Credits,
			})
		}
	}
	f.ledger = ledger.NewService(f.db, f.accounts, f.txns, f.pub, quiet())
	f.svc = NewService(f.db, f.events, f.sessions, f.ledger, quiet())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) account(t *testing.T, id uuid.UUID) *models.Account {
	t.Helper()
	a, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func freeAccount(credits int) *models.Account {
	return &models.Account{ID: uuid.New(), Plan: models.PlanFree, Credits: credits}
}

func TestHandle_OneOffPurchase(t *testing.T) {
	acc := freeAccount(0)
	f := newFixture(t, acc)
	session := uuid.New()

	out, err := f.svc.Handle(context.Background(), &billing.Event{
		Provider: "stripe", ID: "evt_1", Kind: billing.KindCheckoutCompleted,
		PurchaseType: models.PurchaseOneOff, AccountID: acc.ID, SessionID: session,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got := f.account(t, acc.ID)
	assert.Equal(t, 1, got.Credits)
	assert.Equal(t, models.PlanPayPerUse, got.Plan)
	assert.Equal(t, got.Credits, f.txns.Sum(acc.ID))
	assert.Equal(t, []uuid.UUID{session}, f.sessions.completed)
	assert.Equal(t, 2, f.pub.n)
}

func TestHandle_OneOffKeepsProPlan(t *testing.T) {
	until := time.Now().Add(24 * time.Hour)
	acc := &models.Account{ID: uuid.New(), Plan: models.PlanPro, ProUntil: &until, Credits: 10}
	f := newFixture(t, acc)

	_, err := f.svc.Handle(context.Background(), &billing.Event{
		Provider: "stripe", ID: "evt_2", Kind: billing.KindCheckoutCompleted,
		PurchaseType: models.PurchaseOneOff, AccountID: acc.ID,
	})
	require.NoError(t, err)
	got := f.account(t, acc.ID)
	assert.Equal(t, 11, got.Credits)
	assert.Equal(t, models.PlanPro, got.Plan)
	assert.Empty(t, f.sessions.completed)
}

func TestHandle_SubscriptionReplayCreditsOnce(t *testing.T) {
	acc := freeAccount(0)
	f := newFixture(t, acc)
	evt := &billing.Event{
		Provider: "stripe", ID: "evt_sub", Kind: billing.KindCheckoutCompleted,
		PurchaseType: models.PurchaseSubscription, AccountID: acc.ID,
	}

	out, err := f.svc.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	out, err = f.svc.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	got := f.account(t, acc.ID)
	assert.Equal(t, 40, got.Credits)
	assert.Equal(t, models.PlanPro, got.Plan)
	require.NotNil(t, got.ProUntil)
	assert.Equal(t, f.now.Add(ProPeriod), *got.ProUntil)
	assert.Equal(t, 1, f.txns.Count(acc.ID, models.CreditReasonSubscriptionMonthly))
	assert.Equal(t, 40, f.txns.Sum(acc.ID))
}

func TestHandle_ConcurrentReplay(t *testing.T) {
	acc := freeAccount(0)
	f := newFixture(t, acc)
	evt := &billing.Event{
		Provider: "midtrans", ID: uuid.NewString(), Kind: billing.KindCheckoutCompleted,
		PurchaseType: models.PurchaseSubscription, AccountID: acc.ID,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[Outcome]int{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Handle(context.Background(), evt)
			assert.NoError(t, err)
			mu.Lock()
			outcomes[out]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[OutcomeApplied])
	assert.Equal(t, 4, outcomes[OutcomeDuplicate])
	assert.Equal(t, 40, f.account(t, acc.ID).Credits)
}

func TestHandle_RenewalThenCancel(t *testing.T) {
	until := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	acc := &models.Account{ID: uuid.New(), Plan: models.PlanPro, ProUntil: &until}
	f := newFixture(t, acc)
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, &billing.Event{Provider: "stripe", ID: "evt_r1", Kind: billing.KindSubscriptionRenewed, AccountID: acc.ID})
	require.NoError(t, err)
	got := f.account(t, acc.ID)
	assert.Equal(t, 40, got.Credits)
	assert.Equal(t, f.now.Add(ProPeriod), *got.ProUntil)

	_, err = f.svc.Handle(ctx, &billing.Event{Provider: "stripe", ID: "evt_c1", Kind: billing.KindSubscriptionCancelled, AccountID: acc.ID})
	require.NoError(t, err)
	got = f.account(t, acc.ID)
	assert.Equal(t, models.PlanFree, got.Plan)
	assert.Nil(t, got.ProUntil)
	assert.Equal(t, 40, got.Credits, "cancelling keeps credits")
}

func TestHandle_LateRenewalKeepsSubscription(t *testing.T) {
	since := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	until := since.Add(ProPeriod)
	acc := &models.Account{ID: uuid.New(), Plan: models.PlanPro, ProSince: &since, ProUntil: &until, Credits: 40}
	f := newFixture(t, acc)
	ctx := context.Background()

	// Hourly expiry runs after pro_until but before the calendar-month invoice.
	changed, err := f.ledger.ExpirePro(ctx, acc.ID, time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, changed)

	f.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	out, err := f.svc.Handle(ctx, &billing.Event{Provider: "stripe", ID: "evt_feb", Kind: billing.KindSubscriptionRenewed, AccountID: acc.ID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got := f.account(t, acc.ID)
	assert.Equal(t, models.PlanPro, got.Plan)
	require.NotNil(t, got.ProSince)
	assert.Equal(t, since, *got.ProSince, "renewal keeps the original subscription start")
	assert.Equal(t, f.now.Add(ProPeriod), *got.ProUntil)
	assert.Equal(t, 80, got.Credits)
}

func TestHandle_IgnoredIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Handle(context.Background(), &billing.Event{Provider: "midtrans", ID: "o-1", Kind: billing.KindIgnored})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	assert.Empty(t, f.events.seen)
	assert.Nil(t, f.db.Last())
}

func TestHandle_UnknownAccountIsRecordedAndIgnored(t *testing.T) {
	f := newFixture(t)
	evt := &billing.Event{Provider: "stripe", ID: "evt_gone", Kind: billing.KindCheckoutCompleted, PurchaseType: models.PurchaseOneOff, AccountID: uuid.New()}

	out, err := f.svc.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	assert.True(t, f.events.seen["stripe:evt_gone"])
	assert.True(t, f.db.Last().Committed())
}

func TestHandle_FailureRollsBack(t *testing.T) {
	acc := freeAccount(0)
	f := newFixture(t, acc)

	_, err := f.svc.Handle(context.Background(), &billing.Event{
		Provider: "stripe", ID: "evt_bad", Kind: billing.KindCheckoutCompleted, PurchaseType: "lifetime", AccountID: acc.ID,
	})
	require.Error(t, err)
	assert.True(t, f.db.Last().RolledBack())
	assert.Zero(t, f.pub.n)

	f.events.err = errors.New("db down")
	_, err = f.svc.Handle(context.Background(), &billing.Event{
		Provider: "stripe", ID: "evt_x", Kind: billing.KindCheckoutCompleted, PurchaseType: models.PurchaseOneOff, AccountID: acc.ID,
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.account(t, acc.ID).Credits)
}
