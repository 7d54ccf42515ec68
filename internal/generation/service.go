package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sketchcode/backend/internal/models"
)

// CreationStore persists generated artifacts.
type CreationStore interface {
	Create(ctx context.Context, c *models.Creation) error
}

// Deadlines bounds a generation per mode.
type Deadlines interface {
	GetDeadline(mode string) (time.Duration, error)
}

type Service struct {
	gen       Generator
	creations CreationStore
	deadlines Deadlines
	log       *slog.Logger
}

func NewService(gen Generator, creations CreationStore, deadlines Deadlines, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{gen: gen, creations: creations, deadlines: deadlines, log: log}
}

// Generate calls the model and stores the result as an unpurchased creation.
// Generating is free; nothing is charged until download.
func (s *Service) Generate(ctx context.Context, accountID uuid.UUID, req Request) (*models.Creation, error) {
	if s.deadlines != nil {
		d, err := s.deadlines.GetDeadline(req.Mode)
		if err != nil {
			return nil, err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	started := time.Now()
	html, err := s.gen.Generate(ctx, req)
	if err != nil {
		s.log.Warn("generation failed", "account_id", accountID, "mode", req.Mode, "duration_ms", time.Since(started).Milliseconds(), "error", err)
		return nil, err
	}

	c := &models.Creation{
		ID:        uuid.New(),
		AccountID: accountID,
		Prompt:    req.Prompt,
		Mode:      req.Mode,
		HTML:      html,
	}
	// The model deadline must not abort the insert.
	if err := s.creations.Create(context.WithoutCancel(ctx), c); err != nil {
		return nil, fmt.Errorf("store creation: %w", err)
	}
	s.log.Info("creation generated", "account_id", accountID, "creation_id", c.ID, "mode", req.Mode,
		"html_bytes", len(html), "duration_ms", time.Since(started).Milliseconds())
	return c, nil
}
