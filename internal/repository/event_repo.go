package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// EventRepo records processed provider notifications.
type EventRepo struct{}

func NewEventRepo() *EventRepo {
	return &EventRepo{}
}

// InsertTx claims eventID inside tx. It returns false when the id was
// already recorded, meaning the event has been processed before.
func (r *EventRepo) InsertTx(ctx context.Context, tx pgx.Tx, eventID, provider, eventType string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, provider, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, provider, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
