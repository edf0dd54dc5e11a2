package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Accept claims a requested ride for the driver. Arbitration is the store's
// compare-and-swap: of any number of concurrent accepts exactly one moves
// the ride to accepted, the rest learn what actually happened.
func (c *Coordinator) Accept(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), types.ActionAcceptRide)

	online, err := c.presence.IsOnline(ctx, driver.ID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("presence lookup: %w", err))
	}
	if !online {
		return nil, types.ErrDriverOffline
	}

	payload, err := json.Marshal(models.RideClaimedPayload{DriverID: driver.ID})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("marshal ride_claimed payload: %w", err))
	}

	var (
		ride    *models.Ride
		claimed *models.DispatchEvent
		gone    *models.DispatchEvent
	)

	err = c.withStoreRetry(ctx, func(ctx context.Context) error {
		return c.trm.Do(ctx, func(ctx context.Context) error {
			now := time.Now().UTC()
			current, err := c.rides.Transition(ctx, rideID, types.StatusRequested, types.StatusAccepted, models.TransitionFields{
				DriverID:   &driver.ID,
				AcceptedAt: &now,
			})
			if err != nil {
				if errors.Is(err, types.ErrStatusConflict) {
					return acceptOutcome(current)
				}
				return err
			}

			claimed, err = c.events.Append(ctx, &models.DispatchEvent{
				Type:    types.EventRideClaimed,
				RideID:  rideID,
				Payload: payload,
			})
			if err != nil {
				return err
			}

			gone, err = c.events.Append(ctx, &models.DispatchEvent{
				Type:    types.EventRideUnavailable,
				RideID:  rideID,
				Payload: payload,
			})
			if err != nil {
				return err
			}

			ride, err = c.rides.Get(ctx, rideID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, types.ErrAlreadyClaimed) {
			metrics.AcceptConflictsTotal.WithLabelValues("dispatch").Inc()
		}
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues("dispatch", types.StatusAccepted.String()).Inc()

	// Winner and rider learn the claim; the remaining fanned-out drivers
	// learn the ride is gone.
	c.notifier.Notify(ctx, []uuid.UUID{ride.RiderID, driver.ID}, *claimed)
	if losers := c.fanoutExcept(rideID, driver.ID); len(losers) > 0 {
		c.notifier.Notify(ctx, losers, *gone)
	}

	c.log.Info(ctx, "ride claimed", "driver_id", driver.ID)
	return ride, nil
}

// acceptOutcome names the loser's outcome from the status that won the race.
func acceptOutcome(current types.RideStatus) error {
	switch current {
	case types.StatusAccepted, types.StatusInProgress, types.StatusCompleted:
		return types.ErrAlreadyClaimed
	case types.StatusExpired:
		return types.ErrRideExpired
	default:
		return types.ErrInvalidTransition
	}
}
