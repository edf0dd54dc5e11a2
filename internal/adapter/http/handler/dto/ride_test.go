package dto

import (
	"strings"
	"testing"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
	"github.com/borauni/ride-dispatch/pkg/validator"
)

func ptr[T any](v T) *T { return &v }

func validCreate() CreateRideRequest {
	return CreateRideRequest{
		Origin:      LocationRequest{Latitude: ptr(43.238949), Longitude: ptr(76.889709)},
		Destination: LocationRequest{Latitude: ptr(43.25654), Longitude: ptr(76.92848), Name: "Abay Ave 10"},
	}
}

func TestCreateRideRequest_Valid(t *testing.T) {
	v := validator.New()
	req := validCreate()
	req.Validate(v)
	if !v.Valid() {
		t.Fatalf("valid request rejected: %v", v.Errors)
	}

	origin, destination := req.ToModel()
	if origin.Latitude != 43.238949 || destination.Name != "Abay Ave 10" {
		t.Fatal("ToModel lost fields")
	}
}

func TestCreateRideRequest_MissingCoordinates(t *testing.T) {
	v := validator.New()
	req := validCreate()
	req.Origin.Latitude = nil
	req.Validate(v)

	if v.Valid() {
		t.Fatal("missing latitude must fail")
	}
	if _, ok := v.Errors["origin.latitude"]; !ok {
		t.Fatalf("expected origin.latitude error, got %v", v.Errors)
	}
}

func TestCreateRideRequest_OutOfRange(t *testing.T) {
	v := validator.New()
	req := validCreate()
	req.Origin.Latitude = ptr(91.0)
	req.Destination.Longitude = ptr(-181.0)
	req.Validate(v)

	if _, ok := v.Errors["origin.latitude"]; !ok {
		t.Fatal("latitude beyond 90 must fail")
	}
	if _, ok := v.Errors["destination.longitude"]; !ok {
		t.Fatal("longitude beyond -180 must fail")
	}
}

func TestCreateRideRequest_DestinationNameRequired(t *testing.T) {
	v := validator.New()
	req := validCreate()
	req.Destination.Name = ""
	req.Validate(v)

	if _, ok := v.Errors["destination.name"]; !ok {
		t.Fatal("empty destination name must fail")
	}

	v = validator.New()
	req = validCreate()
	req.Destination.Name = strings.Repeat("x", 256)
	req.Validate(v)
	if _, ok := v.Errors["destination.name"]; !ok {
		t.Fatal("overlong destination name must fail")
	}
}

func TestRateRideRequest(t *testing.T) {
	for rating, wantOK := range map[int]bool{0: false, 1: true, 5: true, 6: false} {
		v := validator.New()
		req := RateRideRequest{Rating: ptr(rating)}
		req.Validate(v)
		if v.Valid() != wantOK {
			t.Errorf("rating %d: valid=%v, want %v", rating, v.Valid(), wantOK)
		}
	}

	v := validator.New()
	req := RateRideRequest{}
	req.Validate(v)
	if v.Valid() {
		t.Fatal("missing rating must fail")
	}
}

func TestNewRideResponse(t *testing.T) {
	rideID, _ := uuid.New()
	riderID, _ := uuid.New()
	driverID, _ := uuid.New()
	now := time.Now()

	ride := &models.Ride{
		ID:          rideID,
		RiderID:     riderID,
		DriverID:    &driverID,
		Origin:      models.Location{Latitude: 43.24, Longitude: 76.89},
		Destination: models.Location{Latitude: 43.26, Longitude: 76.93, Name: "Abay Ave 10"},
		Status:      types.StatusAccepted,
		CreatedAt:   now,
		AcceptedAt:  &now,
	}

	resp := NewRideResponse(ride)
	if resp.RideID != rideID || resp.RiderID != riderID {
		t.Fatal("ids lost in translation")
	}
	if resp.DriverID == nil || *resp.DriverID != driverID {
		t.Fatal("driver id lost")
	}
	if resp.Status != "accepted" {
		t.Fatalf("status %q", resp.Status)
	}
	if resp.Destination.Name != "Abay Ave 10" {
		t.Fatal("destination name lost")
	}
	if resp.StartedAt != nil || resp.CompletedAt != nil {
		t.Fatal("unset timestamps must stay nil")
	}
}
