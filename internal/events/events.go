// Package events publishes ledger events for out-of-process consumers such
// as the admin dashboard. Publication is best-effort and happens after the
// originating transaction commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Event types.
const (
	TypeCreditsAdded    = "credits.added"
	TypeCreditsConsumed = "credits.consumed"
	TypePlanChanged     = "plan.changed"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "sketchcode."

type Event struct {
	Type       string         `json:"type"`
	AccountID  uuid.UUID      `json:"account_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("sketchcode-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.nc.Publish(SubjectPrefix+e.Type, data)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// PublishAll publishes each event and logs failures instead of returning them.
func PublishAll(ctx context.Context, p Publisher, log *slog.Logger, evts ...Event) {
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			log.Warn("publish event failed", "type", e.Type, "account_id", e.AccountID, "error", err)
		}
	}
}
