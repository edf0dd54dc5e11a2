package types

import "errors"

var (
	ErrRideNotFound     = errors.New("ride not found")
	ErrActiveRideExists = errors.New("rider already has an active ride")
	ErrAlreadyClaimed   = errors.New("ride already claimed by another driver")
	ErrRideExpired      = errors.New("ride request expired")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrForbidden        = errors.New("caller is not allowed to perform this transition")
	ErrDriverOffline    = errors.New("driver is not online")
	ErrRideNotRated     = errors.New("only completed rides can be rated")
	ErrAlreadyRated     = errors.New("ride already rated")
	ErrStoreUnavailable = errors.New("ride store unavailable")

	ErrSessionNotFound = errors.New("session not found")
	ErrNotFound        = errors.New("requested item not found")
)

// ErrStatusConflict is returned by the ride store when a compare-and-swap
// transition finds a different stored status than expected. The caller maps
// it to a domain outcome (already_claimed, expired, ...) using the current
// status reported alongside.
var ErrStatusConflict = errors.New("ride status conflict")
