package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchcode/backend/internal/models"
)

type fakeGenerator struct {
	html        string
	err         error
	got         Request
	hadDeadline bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.got = req
	_, f.hadDeadline = ctx.Deadline()
	return f.html, f.err
}

type memCreations struct {
	mu   sync.Mutex
	rows []*models.Creation
}

func (m *memCreations) Create(_ context.Context, c *models.Creation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows = append(m.rows, &cp)
	return nil
}

type fixedDeadlines time.Duration

func (d fixedDeadlines) GetDeadline(mode string) (time.Duration, error) {
	if mode == "voice" {
		return 0, errors.New("unknown mode")
	}
	return time.Duration(d), nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGenerate_StoresUnpurchasedCreation(t *testing.T) {
	gen := &fakeGenerator{html: "<html></html>"}
	store := &memCreations{}
	svc := NewService(gen, store, fixedDeadlines(time.Minute), quiet())
	account := uuid.New()

	c, err := svc.Generate(context.Background(), account, Request{Prompt: "landing", Mode: models.ModePrompt})
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", c.HTML)
	assert.False(t, c.Purchased)
	assert.Equal(t, account, c.AccountID)
	assert.True(t, gen.hadDeadline)

	require.Len(t, store.rows, 1)
	assert.Equal(t, c.ID, store.rows[0].ID)
	assert.Equal(t, models.ModePrompt, store.rows[0].Mode)
}

func TestGenerate_UpstreamErrorStoresNothing(t *testing.T) {
	store := &memCreations{}
	svc := NewService(&fakeGenerator{err: ErrUpstreamQuota}, store, nil, quiet())

	_, err := svc.Generate(context.Background(), uuid.New(), Request{Prompt: "x", Mode: models.ModePrompt})
	assert.ErrorIs(t, err, ErrUpstreamQuota)
	assert.Empty(t, store.rows)
}

func TestGenerate_UnknownModeDeadline(t *testing.T) {
	gen := &fakeGenerator{html: "<html></html>"}
	svc := NewService(gen, &memCreations{}, fixedDeadlines(time.Minute), quiet())

	_, err := svc.Generate(context.Background(), uuid.New(), Request{Mode: "voice"})
	require.Error(t, err)
	assert.Empty(t, gen.got.Mode)
}
