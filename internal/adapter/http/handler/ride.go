package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/borauni/ride-dispatch/internal/adapter/http/handler/dto"
	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/uuid"
	"github.com/borauni/ride-dispatch/pkg/validator"
)

type Ride struct {
	service DispatchService
	l       logger.Logger
}

// DispatchService is the coordinator surface the HTTP layer needs.
type DispatchService interface {
	CreateRequest(ctx context.Context, rider *models.User, origin, destination models.Location) (*models.Ride, error)
	Accept(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error)
	Start(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error)
	Complete(ctx context.Context, driver *models.User, rideID uuid.UUID) (*models.Ride, error)
	Cancel(ctx context.Context, caller *models.User, rideID uuid.UUID) (*models.Ride, error)
	Rate(ctx context.Context, rider *models.User, rideID uuid.UUID, rating int) (*models.Ride, error)
	Get(ctx context.Context, caller *models.User, rideID uuid.UUID) (*models.Ride, error)
	EventsSince(ctx context.Context, caller *models.User, rideID uuid.UUID, since int64) ([]*models.DispatchEvent, error)
	ActiveFor(ctx context.Context, caller *models.User) (*models.Ride, error)
}

func NewRide(service DispatchService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// CreateRide godoc
// @Summary      Request a ride
// @Description  Opens a ride request and fans it out to nearby online drivers
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRideRequest true "origin and destination"
// @Success      201  {object}  dto.RideResponse
// @Failure      409  {object}  map[string]string
// @Router       /rides [post]
func (h *Ride) CreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionCreateRide)
	user := models.UserFromContext(ctx)

	var req dto.CreateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	origin, destination := req.ToModel()
	ride, err := h.service.CreateRequest(ctx, user, origin, destination)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create ride request", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride)}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// AcceptRide godoc
// @Summary      Accept a ride
// @Description  Claims a requested ride for the calling driver; exactly one concurrent accept wins
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Success      200  {object}  dto.RideResponse
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/accept [post]
func (h *Ride) AcceptRide(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.ActionAcceptRide, h.service.Accept)
}

// StartRide godoc
// @Summary      Start a ride
// @Description  Moves an accepted ride to in_progress; bound driver only
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/start [post]
func (h *Ride) StartRide(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.ActionStartRide, h.service.Start)
}

// CompleteRide godoc
// @Summary      Complete a ride
// @Description  Finishes an in_progress ride; bound driver only
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/complete [post]
func (h *Ride) CompleteRide(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.ActionCompleteRide, h.service.Complete)
}

// CancelRide godoc
// @Summary      Cancel a ride
// @Description  Cancels a requested or accepted ride
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Success      200  {object}  dto.RideResponse
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/cancel [post]
func (h *Ride) CancelRide(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, types.ActionCancelRide, h.service.Cancel)
}

// transition runs the shared parse-call-respond cycle of the lifecycle
// endpoints.
func (h *Ride) transition(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, *models.User, uuid.UUID) (*models.Ride, error)) {
	ctx := wrap.WithAction(r.Context(), action)
	user := models.UserFromContext(ctx)

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride, err := op(ctx, user, rideID)
	if err != nil {
		h.l.Warn(ctx, "ride transition rejected", "error", err.Error())
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// RateRide godoc
// @Summary      Rate a completed ride
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Param        request body dto.RateRideRequest true "rating 1..5"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/rating [post]
func (h *Ride) RateRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionRateRide)
	user := models.UserFromContext(ctx)

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	var req dto.RateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.Rate(ctx, user, rideID, *req.Rating)
	if err != nil {
		h.l.Warn(ctx, "rating rejected", "error", err.Error())
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// GetRide godoc
// @Summary      Ride snapshot
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id} [get]
func (h *Ride) GetRide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	ride, err := h.service.Get(ctx, user, rideID)
	if err != nil {
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// ListRideEvents godoc
// @Summary      Replay ride events
// @Description  Returns events with sequence numbers greater than the since parameter
// @Tags         Rides
// @Produce      json
// @Param        ride_id path string true "ride id"
// @Param        since query int false "last seen sequence number"
// @Success      200  {array}  models.DispatchEvent
// @Router       /rides/{ride_id}/events [get]
func (h *Ride) ListRideEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			errorResponse(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
	}

	events, err := h.service.EventsSince(ctx, user, rideID, since)
	if err != nil {
		domainErrorResponse(w, err)
		return
	}
	if events == nil {
		events = []*models.DispatchEvent{}
	}

	response := envelope{"events": events}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// ActiveRide godoc
// @Summary      The caller's active ride
// @Tags         Rides
// @Produce      json
// @Success      200  {object}  dto.RideResponse
// @Failure      404  {object}  map[string]string
// @Router       /rides/active [get]
func (h *Ride) ActiveRide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	ride, err := h.service.ActiveFor(ctx, user)
	if err != nil {
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}
