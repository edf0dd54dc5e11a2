package dispatch

import (
	"context"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Get returns a ride snapshot. Riders see their own rides, drivers see rides
// they are bound to plus anything still claimable.
func (c *Coordinator) Get(ctx context.Context, caller *models.User, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := c.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !canSee(caller, ride) {
		return nil, types.ErrForbidden
	}
	return ride, nil
}

// EventsSince replays the ride's events with sequence numbers greater than
// since, for clients that reconnected and need to catch up.
func (c *Coordinator) EventsSince(ctx context.Context, caller *models.User, rideID uuid.UUID, since int64) ([]*models.DispatchEvent, error) {
	ride, err := c.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !canSee(caller, ride) {
		return nil, types.ErrForbidden
	}

	return c.events.ListSince(ctx, rideID, since)
}

// ActiveFor returns the caller's current non-terminal ride, if any.
func (c *Coordinator) ActiveFor(ctx context.Context, caller *models.User) (*models.Ride, error) {
	return c.rides.ActiveFor(ctx, caller.ID)
}

func canSee(caller *models.User, ride *models.Ride) bool {
	if caller.ID == ride.RiderID {
		return true
	}
	if ride.DriverID != nil && *ride.DriverID == caller.ID {
		return true
	}
	// Any driver can inspect an unclaimed request it was offered.
	return caller.Role == types.DriverRole && ride.Status == types.StatusRequested
}
