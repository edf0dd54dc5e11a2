package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// RunSweeper expires stale requests until ctx is cancelled. Expiry is just
// another CAS from requested, so a concurrent accept and the sweeper can
// never both win.
func (c *Coordinator) RunSweeper(ctx context.Context) {
	ctx = wrap.WithAction(ctx, types.ActionExpireSweep)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	c.log.Info(ctx, "sweeper started", "accept_window", c.cfg.AcceptWindow.String(), "interval", c.cfg.SweepInterval.String())

	for {
		select {
		case <-ctx.Done():
			c.log.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	rides, err := c.rides.ListRequested(ctx)
	if err != nil {
		c.log.Error(ctx, "list requested rides failed", err)
		return
	}

	cutoff := time.Now().Add(-c.cfg.AcceptWindow)
	for _, ride := range rides {
		if ride.CreatedAt.After(cutoff) {
			continue
		}
		c.expire(ctx, ride)
	}
}

func (c *Coordinator) expire(ctx context.Context, ride *models.Ride) {
	ctx = wrap.WithRideID(ctx, ride.ID.String())

	var (
		expired *models.DispatchEvent
		gone    *models.DispatchEvent
	)

	err := c.trm.Do(ctx, func(ctx context.Context) error {
		_, err := c.rides.Transition(ctx, ride.ID, types.StatusRequested, types.StatusExpired, models.TransitionFields{})
		if err != nil {
			return err
		}

		expired, err = c.events.Append(ctx, &models.DispatchEvent{
			Type:   types.EventRideExpired,
			RideID: ride.ID,
		})
		if err != nil {
			return err
		}

		gone, err = c.events.Append(ctx, &models.DispatchEvent{
			Type:   types.EventRideUnavailable,
			RideID: ride.ID,
		})
		return err
	})
	if err != nil {
		// A lost CAS means a driver claimed or the rider cancelled between
		// the listing and now. That is the intended resolution, not a fault.
		if !errors.Is(err, types.ErrStatusConflict) && !errors.Is(err, types.ErrRideNotFound) {
			c.log.Error(ctx, "expire ride failed", err)
		}
		return
	}

	metrics.RidesExpiredTotal.WithLabelValues("dispatch").Inc()

	c.notifier.Notify(ctx, []uuid.UUID{ride.RiderID}, *expired)
	if drivers := c.takeFanout(ride.ID); len(drivers) > 0 {
		c.notifier.Notify(ctx, drivers, *gone)
	}

	c.log.Info(ctx, "ride expired", "requested_at", ride.CreatedAt)
}
