package models

import (
	"encoding/json"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// DispatchEvent is the lifecycle event envelope delivered to sessions.
// Seq is monotonically increasing per ride and assigned in the same
// transaction as the state change, so clients can deduplicate replays.
type DispatchEvent struct {
	Type    types.DispatchEventType `json:"type"`
	RideID  uuid.UUID               `json:"ride_id"`
	Seq     int64                   `json:"sequence_number"`
	Payload json.RawMessage         `json:"payload,omitempty"`
	At      time.Time               `json:"at"`
}

// NewRidePayload is the payload of a new_ride event.
type NewRidePayload struct {
	RiderName   string   `json:"rider_name,omitempty"`
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
}

// RideClaimedPayload is the payload of a ride_claimed event.
type RideClaimedPayload struct {
	DriverID uuid.UUID `json:"driver_id"`
}

// RideCancelledPayload is the payload of a ride_cancelled event.
type RideCancelledPayload struct {
	CancelledBy types.UserRole `json:"cancelled_by"`
}

// EventEnvelope is the bus message fanned out between dispatch instances:
// one event, addressed to explicit recipients. Each instance delivers to
// whichever recipients hold a local session.
type EventEnvelope struct {
	Recipients []uuid.UUID   `json:"recipients"`
	Event      DispatchEvent `json:"event"`
}
