package types

// DispatchEventType names the lifecycle events delivered to sessions.
type DispatchEventType string

const (
	EventNewRide         DispatchEventType = "new_ride"
	EventRideClaimed     DispatchEventType = "ride_claimed"
	EventRideUnavailable DispatchEventType = "ride_unavailable"
	EventRideStarted     DispatchEventType = "ride_started"
	EventRideCompleted   DispatchEventType = "ride_completed"
	EventRideCancelled   DispatchEventType = "ride_cancelled"
	EventRideExpired     DispatchEventType = "ride_expired"
)

func (e DispatchEventType) String() string {
	return string(e)
}
