package types

// RideStatus is the lifecycle state of a ride request.
type RideStatus string

const (
	StatusRequested  RideStatus = "requested"
	StatusAccepted   RideStatus = "accepted"
	StatusInProgress RideStatus = "in_progress"
	StatusCompleted  RideStatus = "completed"
	StatusCancelled  RideStatus = "cancelled"
	StatusExpired    RideStatus = "expired"
)

func (s RideStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition can leave s.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// transitions is the full set of legal state changes. cancelled and expired
// are reachable from requested/accepted only, never once a ride is underway.
var transitions = map[RideStatus][]RideStatus{
	StatusRequested:  {StatusAccepted, StatusCancelled, StatusExpired},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether s -> next is a legal lifecycle move.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// UserRole distinguishes the two caller identities the engine serves.
type UserRole string

const (
	RiderRole  UserRole = "rider"
	DriverRole UserRole = "driver"
)

func (r UserRole) String() string {
	return string(r)
}

// ParseRole converts a claim/string value into a known role.
func ParseRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case RiderRole:
		return RiderRole, true
	case DriverRole:
		return DriverRole, true
	default:
		return "", false
	}
}
