package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// CreateRequest opens a ride request for the rider and fans it out to
// eligible drivers. A rider with a non-terminal ride gets
// ErrActiveRideExists; the guard is a storage constraint, so two concurrent
// creates cannot both slip through.
func (c *Coordinator) CreateRequest(ctx context.Context, rider *models.User, origin, destination models.Location) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, types.ActionCreateRide)

	rideID, err := uuid.New()
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("generate ride id: %w", err))
	}
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride := &models.Ride{
		ID:          rideID,
		RiderID:     rider.ID,
		Origin:      origin,
		Destination: destination,
		Status:      types.StatusRequested,
	}

	payload, err := json.Marshal(models.NewRidePayload{
		RiderName:   rider.Name,
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("marshal new_ride payload: %w", err))
	}

	var event *models.DispatchEvent

	err = c.withStoreRetry(ctx, func(ctx context.Context) error {
		return c.trm.Do(ctx, func(ctx context.Context) error {
			if _, err := c.rides.Create(ctx, ride); err != nil {
				return err
			}

			event, err = c.events.Append(ctx, &models.DispatchEvent{
				Type:    types.EventNewRide,
				RideID:  ride.ID,
				Payload: payload,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues("dispatch", types.StatusRequested.String()).Inc()

	candidates := c.fanout(ctx, ride, *event)
	c.log.Info(ctx, "ride requested", "rider_id", rider.ID, "candidates", len(candidates))

	return ride, nil
}

// fanout consults the selector once and pushes the new_ride event to every
// candidate. An empty candidate set is not an error: the request stays open
// until a driver connects and pulls it or the sweeper expires it.
func (c *Coordinator) fanout(ctx context.Context, ride *models.Ride, event models.DispatchEvent) []uuid.UUID {
	drivers, err := c.presence.OnlineDrivers(ctx)
	if err != nil {
		c.log.Warn(ctx, "online driver lookup failed, skipping fan-out", "error", err.Error())
		return nil
	}

	candidates := c.selector.Select(ctx, ride.Origin, drivers)
	if len(candidates) == 0 {
		return nil
	}

	c.recordFanout(ride.ID, candidates)
	c.notifier.Notify(ctx, candidates, event)
	return candidates
}
