package dto

import (
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/pkg/uuid"
	"github.com/borauni/ride-dispatch/pkg/validator"
)

type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
}

func (l *LocationRequest) validate(v *validator.Validator, field string) {
	v.Check(l.Latitude != nil, field+".latitude", "must be provided")
	if l.Latitude != nil {
		v.Check(validator.Between(*l.Latitude, -90, 90), field+".latitude", "must be between -90 and 90")
	}
	v.Check(l.Longitude != nil, field+".longitude", "must be provided")
	if l.Longitude != nil {
		v.Check(validator.Between(*l.Longitude, -180, 180), field+".longitude", "must be between -180 and 180")
	}
	v.Check(len(l.Name) <= 255, field+".name", "must not be more than 255 characters long")
}

func (l *LocationRequest) toModel() models.Location {
	loc := models.Location{Name: l.Name}
	if l.Latitude != nil {
		loc.Latitude = *l.Latitude
	}
	if l.Longitude != nil {
		loc.Longitude = *l.Longitude
	}
	return loc
}

type CreateRideRequest struct {
	Origin      LocationRequest `json:"origin"`
	Destination LocationRequest `json:"destination"`
}

func (r *CreateRideRequest) Validate(v *validator.Validator) {
	r.Origin.validate(v, "origin")
	r.Destination.validate(v, "destination")
	v.Check(r.Destination.Name != "", "destination.name", "must be provided")
}

func (r *CreateRideRequest) ToModel() (origin, destination models.Location) {
	return r.Origin.toModel(), r.Destination.toModel()
}

type RateRideRequest struct {
	Rating *int `json:"rating"`
}

func (r *RateRideRequest) Validate(v *validator.Validator) {
	v.Check(r.Rating != nil, "rating", "must be provided")
	if r.Rating != nil {
		v.Check(validator.Between(*r.Rating, 1, 5), "rating", "must be between 1 and 5")
	}
}

type RideResponse struct {
	RideID      uuid.UUID        `json:"ride_id"`
	RiderID     uuid.UUID        `json:"rider_id"`
	DriverID    *uuid.UUID       `json:"driver_id,omitempty"`
	Origin      LocationResponse `json:"origin"`
	Destination LocationResponse `json:"destination"`
	Status      string           `json:"status"`
	Rating      *int             `json:"rating,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
}

type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

func NewRideResponse(ride *models.Ride) RideResponse {
	return RideResponse{
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		DriverID:    ride.DriverID,
		Origin:      LocationResponse(ride.Origin),
		Destination: LocationResponse(ride.Destination),
		Status:      ride.Status.String(),
		Rating:      ride.Rating,
		CreatedAt:   ride.CreatedAt,
		AcceptedAt:  ride.AcceptedAt,
		StartedAt:   ride.StartedAt,
		CompletedAt: ride.CompletedAt,
		CancelledAt: ride.CancelledAt,
	}
}
