// Package ledgertest provides in-memory account and transaction stores for
// running the ledger service in tests without a database. A single mutex
// per store stands in for the row lock.
package ledgertest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/models"
)

type Accounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func NewAccounts(accs ...*models.Account) *Accounts {
	m := &Accounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		m.Put(a)
	}
	return m
}

// Put stores a copy of a, replacing any account with the same id.
func (m *Accounts) Put(a *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
}

func (m *Accounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *Accounts) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *Accounts) DeductCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.Credits < amount {
		return 0, pgx.ErrNoRows
	}
	a.Credits -= amount
	return a.Credits, nil
}

func (m *Accounts) AddCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.Credits += amount
	return a.Credits, nil
}

func (m *Accounts) UpdatePlan(_ context.Context, _ pgx.Tx, id uuid.UUID, plan string, since, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Plan, a.ProSince, a.ProUntil = plan, since, until
	return nil
}

// Delete removes the account and reports whether it existed.
func (m *Accounts) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[id]
	delete(m.accounts, id)
	return ok, nil
}

// All returns copies of every stored account.
func (m *Accounts) All() []*models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

type Transactions struct {
	mu      sync.Mutex
	entries []*models.CreditTransaction
}

func (m *Transactions) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.CreatedAt = time.Now()
	m.entries = append(m.entries, &cp)
	return nil
}

// ListByAccountID returns entries newest first.
func (m *Transactions) ListByAccountID(_ context.Context, id uuid.UUID) ([]*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CreditTransaction{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].AccountID == id {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Sum returns Σ change for the account.
func (m *Transactions) Sum(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.entries {
		if e.AccountID == id {
			total += e.Change
		}
	}
	return total
}

// Count returns how many entries have the given reason.
func (m *Transactions) Count(id uuid.UUID, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.AccountID == id && e.Reason == reason {
			n++
		}
	}
	return n
}

func (m *Transactions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
