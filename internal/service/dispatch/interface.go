package dispatch

import (
	"context"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// RideRepo is the durable ride store. Transition is the only write used
// after creation: an atomic compare-and-swap that either applies the status
// change or reports the status that actually holds.
type RideRepo interface {
	Create(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	ActiveFor(ctx context.Context, userID uuid.UUID) (*models.Ride, error)
	ListRequested(ctx context.Context) ([]*models.Ride, error)
	Transition(ctx context.Context, rideID uuid.UUID, expected, next types.RideStatus, fields models.TransitionFields) (types.RideStatus, error)
}

// EventRepo appends and replays per-ride lifecycle events.
type EventRepo interface {
	Append(ctx context.Context, event *models.DispatchEvent) (*models.DispatchEvent, error)
	ListSince(ctx context.Context, rideID uuid.UUID, since int64) ([]*models.DispatchEvent, error)
}

// Presence answers who is online across all dispatch instances.
type Presence interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineDrivers(ctx context.Context) ([]models.OnlineDriver, error)
}

// Selector orders candidate drivers for a new ride request. It is consulted
// exactly once per ride, at fan-out time.
type Selector interface {
	Select(ctx context.Context, origin models.Location, drivers []models.OnlineDriver) []uuid.UUID
}

// Notifier delivers a persisted event to the named recipients. Delivery is
// best effort; failures never reach the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, event models.DispatchEvent)
}
