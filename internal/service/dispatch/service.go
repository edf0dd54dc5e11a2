package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	"github.com/borauni/ride-dispatch/pkg/trm"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Config holds the coordinator knobs.
type Config struct {
	// AcceptWindow is how long a request stays claimable before the sweeper
	// expires it.
	AcceptWindow time.Duration

	// SweepInterval is how often the sweeper looks for stale requests.
	SweepInterval time.Duration
}

// Coordinator drives the ride lifecycle. Every transition goes through the
// store's compare-and-swap, so concurrent operations on the same ride
// resolve to exactly one winner no matter which instance they hit.
type Coordinator struct {
	rides    RideRepo
	events   EventRepo
	presence Presence
	selector Selector
	notifier Notifier
	trm      trm.TxManager
	log      logger.Logger
	cfg      Config

	// Drivers fanned out per ride, recorded on the instance that performed
	// fan-out so race losers can be told the ride is gone.
	mu       sync.Mutex
	fannedTo map[uuid.UUID][]uuid.UUID
}

func NewCoordinator(rides RideRepo, events EventRepo, presence Presence, selector Selector, notifier Notifier, txManager trm.TxManager, cfg Config, log logger.Logger) *Coordinator {
	return &Coordinator{
		rides:    rides,
		events:   events,
		presence: presence,
		selector: selector,
		notifier: notifier,
		trm:      txManager,
		log:      log,
		cfg:      cfg,
		fannedTo: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (c *Coordinator) recordFanout(rideID uuid.UUID, drivers []uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fannedTo[rideID] = drivers
}

// takeFanout returns and forgets the drivers fanned out for a ride. Empty on
// any instance but the one that did the fan-out.
func (c *Coordinator) takeFanout(rideID uuid.UUID) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	drivers := c.fannedTo[rideID]
	delete(c.fannedTo, rideID)
	return drivers
}

// fanoutExcept consumes the fan-out record and returns the drivers minus
// one. Nothing needs the record once the claim race is settled.
func (c *Coordinator) fanoutExcept(rideID uuid.UUID, except uuid.UUID) []uuid.UUID {
	drivers := c.takeFanout(rideID)
	rest := make([]uuid.UUID, 0, len(drivers))
	for _, d := range drivers {
		if d != except {
			rest = append(rest, d)
		}
	}
	return rest
}

const (
	storeRetries    = 3
	storeRetryDelay = 100 * time.Millisecond
)

// withStoreRetry reruns fn on transient storage failures, up to storeRetries
// attempts, then reports the store unavailable. Domain sentinels pass
// through untouched: a lost race is an answer, not a failure.
func (c *Coordinator) withStoreRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < storeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(storeRetryDelay * time.Duration(attempt)):
			}
		}

		err = fn(ctx)
		if err == nil || isDomainErr(err) {
			return err
		}

		c.log.Warn(ctx, "store operation failed, retrying", "attempt", attempt+1, "error", err.Error())
	}

	return errors.Join(types.ErrStoreUnavailable, err)
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		types.ErrRideNotFound, types.ErrActiveRideExists, types.ErrAlreadyClaimed,
		types.ErrRideExpired, types.ErrInvalidTransition, types.ErrForbidden,
		types.ErrDriverOffline, types.ErrRideNotRated, types.ErrAlreadyRated,
		types.ErrStatusConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
