package models

import (
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Location is a point on the map; Name is set for destinations only.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Ride is the central dispatch entity. DriverID is nil until a driver wins
// the claim race and stays set through completion.
type Ride struct {
	ID          uuid.UUID
	RiderID     uuid.UUID
	DriverID    *uuid.UUID
	Origin      Location
	Destination Location
	Status      types.RideStatus

	// Set only after completion, by the rider.
	Rating *int

	// Each timestamp is written exactly once, in lifecycle order.
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// ActiveStatuses are the states that block a rider from opening another ride.
func ActiveStatuses() []types.RideStatus {
	return []types.RideStatus{types.StatusRequested, types.StatusAccepted, types.StatusInProgress}
}

// TransitionFields carries the columns a CAS transition writes besides status.
type TransitionFields struct {
	DriverID    *uuid.UUID
	Rating      *int
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}
