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

// Start moves an accepted ride to in_progress. Only the bound driver may
// start it.
func (c *Coordinator) Start(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), types.ActionStartRide)

	now := time.Now().UTC()
	ride, event, err := c.driverTransition(ctx, driver, rideID,
		types.StatusAccepted, types.StatusInProgress,
		models.TransitionFields{StartedAt: &now},
		types.EventRideStarted,
	)
	if err != nil {
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues("dispatch", types.StatusInProgress.String()).Inc()
	c.notifier.Notify(ctx, []uuid.UUID{ride.RiderID}, *event)
	return ride, nil
}

// Complete finishes an in_progress ride. Only the bound driver may complete
// it.
func (c *Coordinator) Complete(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), types.ActionCompleteRide)

	now := time.Now().UTC()
	ride, event, err := c.driverTransition(ctx, driver, rideID,
		types.StatusInProgress, types.StatusCompleted,
		models.TransitionFields{CompletedAt: &now},
		types.EventRideCompleted,
	)
	if err != nil {
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues("dispatch", types.StatusCompleted.String()).Inc()
	c.notifier.Notify(ctx, []uuid.UUID{ride.RiderID}, *event)
	return ride, nil
}

// driverTransition runs a CAS transition that only the bound driver may
// perform, appending its lifecycle event in the same transaction.
func (c *Coordinator) driverTransition(ctx context.Context, driver *models.User, rideID uuid.UUID, expected, next types.RideStatus, fields models.TransitionFields, eventType types.DispatchEventType) (*models.Ride, *models.DispatchEvent, error) {
	var (
		ride  *models.Ride
		event *models.DispatchEvent
	)

	err := c.withStoreRetry(ctx, func(ctx context.Context) error {
		return c.trm.Do(ctx, func(ctx context.Context) error {
			var err error
			ride, err = c.rides.Get(ctx, rideID)
			if err != nil {
				return err
			}

			if ride.DriverID == nil || *ride.DriverID != driver.ID {
				return types.ErrForbidden
			}

			current, err := c.rides.Transition(ctx, rideID, expected, next, fields)
			if err != nil {
				if errors.Is(err, types.ErrStatusConflict) {
					return fmt.Errorf("%w: ride is %s", types.ErrInvalidTransition, current)
				}
				return err
			}
			ride.Status = next

			event, err = c.events.Append(ctx, &models.DispatchEvent{
				Type:   eventType,
				RideID: rideID,
			})
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}

	return ride, event, nil
}

// Cancel aborts a ride before it starts. The rider may cancel while the ride
// is requested or accepted; the bound driver only while accepted. Once
// in_progress or terminal the ride cannot be cancelled.
func (c *Coordinator) Cancel(ctx context.Context, caller *models.User, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), types.ActionCancelRide)

	payload, err := json.Marshal(models.RideCancelledPayload{CancelledBy: caller.Role})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("marshal ride_cancelled payload: %w", err))
	}

	var (
		ride      *models.Ride
		cancelled *models.DispatchEvent
		gone      *models.DispatchEvent
	)

	err = c.withStoreRetry(ctx, func(ctx context.Context) error {
		return c.trm.Do(ctx, func(ctx context.Context) error {
			var err error
			ride, err = c.rides.Get(ctx, rideID)
			if err != nil {
				return err
			}

			if err := cancelGuard(caller, ride); err != nil {
				return err
			}

			now := time.Now().UTC()
			expected := ride.Status
			current, err := c.rides.Transition(ctx, rideID, expected, types.StatusCancelled, models.TransitionFields{
				CancelledAt: &now,
			})
			if err != nil {
				if errors.Is(err, types.ErrStatusConflict) {
					return fmt.Errorf("%w: ride is %s", types.ErrInvalidTransition, current)
				}
				return err
			}
			ride.Status = types.StatusCancelled
			ride.CancelledAt = &now

			cancelled, err = c.events.Append(ctx, &models.DispatchEvent{
				Type:    types.EventRideCancelled,
				RideID:  rideID,
				Payload: payload,
			})
			if err != nil {
				return err
			}

			if expected == types.StatusRequested {
				gone, err = c.events.Append(ctx, &models.DispatchEvent{
					Type:   types.EventRideUnavailable,
					RideID: rideID,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues("dispatch", types.StatusCancelled.String()).Inc()

	// Tell the counterparty, then clear any outstanding driver cards.
	recipients := counterparty(caller, ride)
	if len(recipients) > 0 {
		c.notifier.Notify(ctx, recipients, *cancelled)
	}
	if gone != nil {
		if drivers := c.takeFanout(rideID); len(drivers) > 0 {
			c.notifier.Notify(ctx, drivers, *gone)
		}
	}

	c.log.Info(ctx, "ride cancelled", "cancelled_by", caller.Role.String())
	return ride, nil
}

// cancelGuard enforces who may cancel from which state. Wrong caller is
// forbidden; right caller in a non-cancellable state is a conflict.
func cancelGuard(caller *models.User, ride *models.Ride) error {
	isRider := caller.ID == ride.RiderID
	isBoundDriver := ride.DriverID != nil && *ride.DriverID == caller.ID

	if !isRider && !isBoundDriver {
		return types.ErrForbidden
	}

	switch ride.Status {
	case types.StatusRequested:
		if !isRider {
			return types.ErrForbidden
		}
	case types.StatusAccepted:
		// rider or bound driver
	default:
		return fmt.Errorf("%w: ride is %s", types.ErrInvalidTransition, ride.Status)
	}
	return nil
}

// counterparty returns the other participants to notify about a cancel.
func counterparty(caller *models.User, ride *models.Ride) []uuid.UUID {
	var recipients []uuid.UUID
	if caller.ID != ride.RiderID {
		recipients = append(recipients, ride.RiderID)
	}
	if ride.DriverID != nil && *ride.DriverID != caller.ID {
		recipients = append(recipients, *ride.DriverID)
	}
	return recipients
}

// Rate records the rider's 1..5 rating for a completed ride, once.
func (c *Coordinator) Rate(ctx context.Context, rider *models.User, rideID uuid.UUID, rating int) (*models.Ride, error) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), types.ActionRateRide)

	var ride *models.Ride

	err := c.withStoreRetry(ctx, func(ctx context.Context) error {
		return c.trm.Do(ctx, func(ctx context.Context) error {
			var err error
			ride, err = c.rides.Get(ctx, rideID)
			if err != nil {
				return err
			}

			if ride.RiderID != rider.ID {
				return types.ErrForbidden
			}
			if ride.Status != types.StatusCompleted {
				return types.ErrRideNotRated
			}
			if ride.Rating != nil {
				return types.ErrAlreadyRated
			}

			current, err := c.rides.Transition(ctx, rideID, types.StatusCompleted, types.StatusCompleted, models.TransitionFields{
				Rating: &rating,
			})
			if err != nil {
				if errors.Is(err, types.ErrStatusConflict) {
					return fmt.Errorf("%w: ride is %s", types.ErrInvalidTransition, current)
				}
				return err
			}
			ride.Rating = &rating
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ride, nil
}
