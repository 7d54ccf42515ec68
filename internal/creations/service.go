package creations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sketchcode/backend/internal/models"
)

// ErrNotFound is returned for missing creations and for creations owned by
// another account; the two are indistinguishable to callers.
var ErrNotFound = errors.New("creation not found")

type Store interface {
	GetOwned(ctx context.Context, id, accountID uuid.UUID) (*models.Creation, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Creation, error)
	DeleteOwned(ctx context.Context, id, accountID uuid.UUID) (bool, error)
}

type Service interface {
	Get(ctx context.Context, accountID, id uuid.UUID) (*models.Creation, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*models.Creation, error)
	Delete(ctx context.Context, accountID, id uuid.UUID) error
}

type service struct {
	store Store
}

func NewService(store Store) *service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

// Get returns the creation. HTML is only included once it has been
// purchased; previews are served from the generate response.
func (s *service) Get(ctx context.Context, accountID, id uuid.UUID) (*models.Creation, error) {
	c, err := s.store.GetOwned(ctx, id, accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !c.Purchased {
		c.HTML = ""
	}
	return c, nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID) ([]*models.Creation, error) {
	return s.store.ListByAccount(ctx, accountID)
}

func (s *service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	ok, err := s.store.DeleteOwned(ctx, id, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
