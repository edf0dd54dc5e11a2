package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	t2 "github.com/borauni/ride-dispatch/internal/domain/types"
)

func TestGetCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{t2.ErrRideNotFound, http.StatusNotFound},
		{t2.ErrNotFound, http.StatusNotFound},
		{t2.ErrForbidden, http.StatusForbidden},
		{t2.ErrActiveRideExists, http.StatusConflict},
		{t2.ErrAlreadyClaimed, http.StatusConflict},
		{t2.ErrRideExpired, http.StatusConflict},
		{t2.ErrInvalidTransition, http.StatusConflict},
		{t2.ErrDriverOffline, http.StatusConflict},
		{t2.ErrRideNotRated, http.StatusConflict},
		{t2.ErrAlreadyRated, http.StatusConflict},
		{t2.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := GetCode(tt.err); got != tt.code {
			t.Errorf("GetCode(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

func TestGetCode_UnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("%w: ride is expired", t2.ErrInvalidTransition)
	if got := GetCode(err); got != http.StatusConflict {
		t.Fatalf("wrapped conflict mapped to %d", got)
	}

	joined := errors.Join(t2.ErrStoreUnavailable, errors.New("dial tcp: refused"))
	if got := GetCode(joined); got != http.StatusServiceUnavailable {
		t.Fatalf("joined store error mapped to %d", got)
	}
}

func TestGetReason(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{t2.ErrActiveRideExists, "active_ride_exists"},
		{t2.ErrAlreadyClaimed, "already_claimed"},
		{t2.ErrRideExpired, "expired"},
		{t2.ErrInvalidTransition, "invalid_transition"},
		{t2.ErrDriverOffline, "driver_offline"},
		{t2.ErrRideNotRated, "not_completed"},
		{t2.ErrAlreadyRated, "already_rated"},
		{t2.ErrStoreUnavailable, "store_unavailable"},
		{t2.ErrRideNotFound, ""},
		{errors.New("boom"), ""},
	}
	for _, tt := range tests {
		if got := GetReason(tt.err); got != tt.reason {
			t.Errorf("GetReason(%v) = %q, want %q", tt.err, got, tt.reason)
		}
	}
}
