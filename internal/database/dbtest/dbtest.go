// Package dbtest provides a pgx.Tx stand-in for tests that run services
// against in-memory repository fakes, and a migrated Postgres pool for
// repository tests.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/sketchcode/backend/internal/database"
)

// Tx satisfies pgx.Tx; only Commit and Rollback carry behavior.
type Tx struct {
	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) { return &Tx{}, nil }

func (t *Tx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *Tx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

func (t *Tx) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}

func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *Tx) Conn() *pgx.Conn { return nil }

// Beginner hands out a fresh Tx per Begin and remembers them.
type Beginner struct {
	mu  sync.Mutex
	txs []*Tx
}

func (b *Beginner) Begin(context.Context) (pgx.Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := &Tx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

// Last returns the most recently started transaction, or nil.
func (b *Beginner) Last() *Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.txs) == 0 {
		return nil
	}
	return b.txs[len(b.txs)-1]
}

// Commits counts committed transactions.
func (b *Beginner) Commits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, tx := range b.txs {
		if tx.Committed() {
			n++
		}
	}
	return n
}

// Pool connects to TEST_DATABASE_URL and applies migrations. Tests calling it
// are skipped when the variable is unset.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil))))
	return pool
}

// InsertAccount writes a user row with the given balance and returns its id.
func InsertAccount(t *testing.T, pool *pgxpool.Pool, credits int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, password_hash, credits) VALUES ($1, $2, 'x', $3)
	`, id, id.String()+"@example.test", credits)
	require.NoError(t, err)
	return id
}
