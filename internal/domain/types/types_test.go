package types

import "testing"

func TestCanTransitionTo(t *testing.T) {
	allowed := []struct{ from, to RideStatus }{
		{StatusRequested, StatusAccepted},
		{StatusRequested, StatusCancelled},
		{StatusRequested, StatusExpired},
		{StatusAccepted, StatusInProgress},
		{StatusAccepted, StatusCancelled},
		{StatusInProgress, StatusCompleted},
	}
	for _, tt := range allowed {
		if !tt.from.CanTransitionTo(tt.to) {
			t.Errorf("%s -> %s must be allowed", tt.from, tt.to)
		}
	}

	forbidden := []struct{ from, to RideStatus }{
		{StatusRequested, StatusInProgress},
		{StatusRequested, StatusCompleted},
		{StatusAccepted, StatusExpired},
		{StatusAccepted, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusExpired},
		{StatusCompleted, StatusRequested},
		{StatusCancelled, StatusAccepted},
		{StatusExpired, StatusAccepted},
	}
	for _, tt := range forbidden {
		if tt.from.CanTransitionTo(tt.to) {
			t.Errorf("%s -> %s must be rejected", tt.from, tt.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []RideStatus{StatusCompleted, StatusCancelled, StatusExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []RideStatus{StatusRequested, StatusAccepted, StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole("rider"); !ok || role != RiderRole {
		t.Fatalf("rider did not parse")
	}
	if role, ok := ParseRole("driver"); !ok || role != DriverRole {
		t.Fatalf("driver did not parse")
	}
	for _, s := range []string{"", "admin", "Rider", "DRIVER"} {
		if _, ok := ParseRole(s); ok {
			t.Errorf("%q must not parse as a role", s)
		}
	}
}
