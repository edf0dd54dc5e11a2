package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

type EventRepo struct {
	db *pgxpool.Pool
}

func NewEventRepo(db *pgxpool.Pool) *EventRepo {
	return &EventRepo{db: db}
}

// Append inserts a lifecycle event and assigns the next per-ride sequence
// number. It must run inside the same transaction as the status transition it
// records (trm.Manager.Do) so the (ride_id, seq) primary key serializes
// concurrent appends for the same ride.
func (r *EventRepo) Append(ctx context.Context, event *models.DispatchEvent) (*models.DispatchEvent, error) {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO ride_events (ride_id, seq, event_type, payload)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
		FROM ride_events
		WHERE ride_id = $1
		RETURNING seq, created_at;`

	err := q.QueryRow(ctx, query, event.RideID, event.Type.String(), event.Payload).
		Scan(&event.Seq, &event.At)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("event repo: Append: %w", err))
	}

	return event, nil
}

// ListSince returns the ride's events with seq > since, in sequence order.
// since = 0 replays the full history.
func (r *EventRepo) ListSince(ctx context.Context, rideID uuid.UUID, since int64) ([]*models.DispatchEvent, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT ride_id, seq, event_type, payload, created_at
		FROM ride_events
		WHERE ride_id = $1 AND seq > $2
		ORDER BY seq;`

	rows, err := q.Query(ctx, query, rideID, since)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("event repo: ListSince: %w", err))
	}
	defer rows.Close()

	var events []*models.DispatchEvent
	for rows.Next() {
		var event models.DispatchEvent
		var eventType string
		if err := rows.Scan(&event.RideID, &event.Seq, &eventType, &event.Payload, &event.At); err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("event repo: ListSince scan: %w", err))
		}
		event.Type = types.DispatchEventType(eventType)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("event repo: ListSince rows: %w", err))
	}

	return events, nil
}
