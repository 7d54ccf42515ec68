package download

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

	"github.com/sketchcode/backend/internal/database/dbtest"
	"github.com/sketchcode/backend/internal/events"
	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/models"
)

// memWorld holds both creations and balances behind one mutex; each
// RequestDownload holds it from the creation lock to commit, which is what
// the creation row lock gives us in Postgres.
type memWorld struct {
	mu        sync.Mutex
	creations map[uuid.UUID]*models.Creation
	balances  map[uuid.UUID]int
	consumed  int
}

func newWorld() *memWorld {
	return &memWorld{
		creations: map[uuid.UUID]*models.Creation{},
		balances:  map[uuid.UUID]int{},
	}
}

// lockingBeginner releases the world lock when the transaction ends.
type lockingBeginner struct{ w *memWorld }

type lockingTx struct {
	*dbtest.Tx
	w    *memWorld
	held bool
}

func (b lockingBeginner) Begin(context.Context) (pgx.Tx, error) {
	return &lockingTx{Tx: &dbtest.Tx{}, w: b.w}, nil
}

func (t *lockingTx) release() {
	if t.held {
		t.held = false
		t.w.mu.Unlock()
	}
}

func (t *lockingTx) Commit(ctx context.Context) error { t.release(); return t.Tx.Commit(ctx) }

func (t *lockingTx) Rollback(ctx context.Context) error {
	if !t.Committed() {
		t.release()
	}
	return t.Tx.Rollback(ctx)
}

func (w *memWorld) GetOwnedForUpdate(_ context.Context, tx pgx.Tx, id, accountID uuid.UUID) (*models.Creation, error) {
	w.mu.Lock()
	tx.(*lockingTx).held = true
	c, ok := w.creations[id]
	if !ok || c.AccountID != accountID {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (w *memWorld) MarkPurchasedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (time.Time, error) {
	now := time.Now()
	w.creations[id].Purchased = true
	w.creations[id].PurchasedAt = &now
	return now, nil
}

// worldLedger mirrors ledger.Service semantics on the shared balances.
type worldLedger struct {
	w         *memWorld
	published []events.Event
}

func (l *worldLedger) ConsumeCreditTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (int, error) {
	bal, ok := l.w.balances[id]
	if !ok {
		return 0, ledger.ErrNotFound
	}
	if bal < 1 {
		return 0, &ledger.InsufficientCreditsError{Credits: bal}
	}
	l.w.balances[id] = bal - 1
	l.w.consumed++
	return bal - 1, nil
}

func (l *worldLedger) GetBalance(_ context.Context, id uuid.UUID) (int, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	return l.w.balances[id], nil
}

func (l *worldLedger) Publish(_ context.Context, evts ...events.Event) {
	l.published = append(l.published, evts...)
}

func newGate(w *memWorld) (*Gate, *worldLedger) {
	l := &worldLedger{w: w}
	return NewGate(lockingBeginner{w}, w, l, slog.New(slog.NewTextHandler(io.Discard, nil))), l
}

func seed(w *memWorld, credits int) (account, creation uuid.UUID) {
	account, creation = uuid.New(), uuid.New()
	w.balances[account] = credits
	w.creations[creation] = &models.Creation{ID: creation, AccountID: account, HTML: "<html>site</html>"}
	return account, creation
}

func TestRequestDownload_ChargesOnce(t *testing.T) {
	w := newWorld()
	g, l := newGate(w)
	account, creation := seed(w, 2)
	ctx := context.Background()

	res, err := g.RequestDownload(ctx, account, creation)
	require.NoError(t, err)
	assert.True(t, res.Charged)
	assert.Equal(t, 1, res.CreditsRemaining)
	assert.Equal(t, "<html>site</html>", res.HTML)
	assert.True(t, w.creations[creation].Purchased)
	require.Len(t, l.published, 1)
	assert.Equal(t, events.TypeCreditsConsumed, l.published[0].Type)

	res, err = g.RequestDownload(ctx, account, creation)
	require.NoError(t, err)
	assert.False(t, res.Charged)
	assert.Equal(t, 1, res.CreditsRemaining)
	assert.Equal(t, "<html>site</html>", res.HTML)
	assert.Equal(t, 1, w.consumed)
}

func TestRequestDownload_InsufficientCredits(t *testing.T) {
	w := newWorld()
	g, l := newGate(w)
	account, creation := seed(w, 0)

	_, err := g.RequestDownload(context.Background(), account, creation)
	var insufficient *ledger.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Credits)
	assert.False(t, w.creations[creation].Purchased)
	assert.Empty(t, l.published)
}

func TestRequestDownload_NotFound(t *testing.T) {
	w := newWorld()
	g, _ := newGate(w)
	account, creation := seed(w, 3)

	_, err := g.RequestDownload(context.Background(), account, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	// Another account's creation is indistinguishable from a missing one.
	_, err = g.RequestDownload(context.Background(), uuid.New(), creation)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, w.balances[account])
}

func TestRequestDownload_ConcurrentSameCreation(t *testing.T) {
	w := newWorld()
	g, _ := newGate(w)
	account, creation := seed(w, 5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.RequestDownload(context.Background(), account, creation)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, w.consumed)
	assert.Equal(t, 4, w.balances[account])
}

func TestRequestDownload_ConcurrentLastCredit(t *testing.T) {
	w := newWorld()
	g, _ := newGate(w)
	account, first := seed(w, 1)
	second := uuid.New()
	w.creations[second] = &models.Creation{ID: second, AccountID: account, HTML: "<html>2</html>"}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{first, second} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = g.RequestDownload(context.Background(), account, id)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, ledger.ErrInsufficientCredits))
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, w.balances[account])
	assert.NotEqual(t, w.creations[first].Purchased, w.creations[second].Purchased)
}
