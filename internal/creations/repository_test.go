package creations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchcode/backend/internal/database/dbtest"
	"github.com/sketchcode/backend/internal/models"
)

func TestGetOwnedForUpdate_SerializesPurchase(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	owner := dbtest.InsertAccount(t, pool, 0)
	c := &models.Creation{ID: uuid.New(), AccountID: owner, Mode: models.ModePrompt, Prompt: "pricing page", HTML: "<html></html>"}
	require.NoError(t, repo.Create(ctx, c))

	first, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer first.Rollback(ctx)
	locked, err := repo.GetOwnedForUpdate(ctx, first, c.ID, owner)
	require.NoError(t, err)
	assert.False(t, locked.Purchased)

	seen := make(chan *models.Creation, 1)
	go func() {
		second, err := pool.Begin(ctx)
		if !assert.NoError(t, err) {
			seen <- nil
			return
		}
		defer second.Rollback(ctx)
		got, err := repo.GetOwnedForUpdate(ctx, second, c.ID, owner)
		assert.NoError(t, err)
		seen <- got
	}()

	select {
	case <-seen:
		t.Fatal("second locker did not wait for the first")
	case <-time.After(200 * time.Millisecond):
	}

	_, err = repo.MarkPurchasedTx(ctx, first, c.ID)
	require.NoError(t, err)
	require.NoError(t, first.Commit(ctx))

	select {
	case got := <-seen:
		require.NotNil(t, got)
		assert.True(t, got.Purchased, "second locker sees the committed purchase")
	case <-time.After(5 * time.Second):
		t.Fatal("second locker never acquired the row")
	}
}

func TestGetOwnedForUpdate_OtherAccount(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	owner := dbtest.InsertAccount(t, pool, 0)
	c := &models.Creation{ID: uuid.New(), AccountID: owner, Mode: models.ModePrompt, HTML: "<html></html>"}
	require.NoError(t, repo.Create(ctx, c))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	_, err = repo.GetOwnedForUpdate(ctx, tx, c.ID, uuid.New())
	assert.Error(t, err)
}
