package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/internal/session"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/uuid"
	"github.com/borauni/ride-dispatch/pkg/validator"
)

// SessionRegistry is the registry surface the attach handlers need.
type SessionRegistry interface {
	Register(ctx context.Context, userID uuid.UUID, role types.UserRole, loc *models.Location, ws *websocket.Conn) (*session.Handle, error)
	Unregister(ctx context.Context, h *session.Handle)
	UpdateLocation(ctx context.Context, h *session.Handle, loc models.Location) error
}

type WS struct {
	registry SessionRegistry
	upgrader websocket.Upgrader
	l        logger.Logger
}

func NewWS(registry SessionRegistry, l logger.Logger) *WS {
	return &WS{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		l: l,
	}
}

// DriverWS godoc
// @Summary      Driver WebSocket attach
// @Description  Registers the driver as online at the given coordinates and streams ride events
// @Tags         WebSocket
// @Param        driver_id path string true "driver id"
// @Param        lat query number true "current latitude"
// @Param        lon query number true "current longitude"
// @Router       /ws/drivers/{driver_id} [get]
func (h *WS) DriverWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionSessionAttach)
	user := models.UserFromContext(ctx)

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid driver uuid format")
		return
	}
	if user.ID != driverID {
		errorResponse(w, http.StatusForbidden, "cannot attach as another driver")
		return
	}

	loc, ok := parseCoordinates(w, r)
	if !ok {
		return
	}

	h.attach(ctx, w, r, driverID, types.DriverRole, &loc)
}

// RiderWS godoc
// @Summary      Rider WebSocket attach
// @Description  Streams lifecycle events for the rider's rides
// @Tags         WebSocket
// @Param        rider_id path string true "rider id"
// @Router       /ws/riders/{rider_id} [get]
func (h *WS) RiderWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionSessionAttach)
	user := models.UserFromContext(ctx)

	riderID, err := uuid.Parse(r.PathValue("rider_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid rider uuid format")
		return
	}
	if user.ID != riderID {
		errorResponse(w, http.StatusForbidden, "cannot attach as another rider")
		return
	}

	h.attach(ctx, w, r, riderID, types.RiderRole, nil)
}

// attach upgrades the connection, registers the session and pumps inbound
// messages until the peer goes away. Drivers report location updates over
// the socket; everything else inbound is ignored.
func (h *WS) attach(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID, role types.UserRole, loc *models.Location) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.l.Warn(ctx, "websocket upgrade failed", "error", err.Error())
		return
	}

	handle, err := h.registry.Register(ctx, userID, role, loc, conn)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to register session", err)
		conn.Close()
		return
	}
	defer h.registry.Unregister(ctx, handle)

	err = handle.Conn.Listen(func(msg map[string]any) error {
		if role == types.DriverRole {
			h.handleDriverMessage(ctx, handle, msg)
		}
		return nil
	})
	if err != nil {
		h.l.Debug(ctx, "websocket closed", "user_id", userID, "reason", err.Error())
	}
}

func (h *WS) handleDriverMessage(ctx context.Context, handle *session.Handle, msg map[string]any) {
	msgType, _ := msg["type"].(string)
	if msgType != "location_update" {
		return
	}

	lat, latOK := msg["latitude"].(float64)
	lon, lonOK := msg["longitude"].(float64)
	if !latOK || !lonOK || !validator.Between(lat, -90, 90) || !validator.Between(lon, -180, 180) {
		h.l.Warn(ctx, "malformed location update, ignoring")
		return
	}

	if err := h.registry.UpdateLocation(ctx, handle, models.Location{Latitude: lat, Longitude: lon}); err != nil {
		h.l.Warn(ctx, "location update failed", "error", err.Error())
	}
}

func parseCoordinates(w http.ResponseWriter, r *http.Request) (models.Location, bool) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil || !validator.Between(lat, -90, 90) || !validator.Between(lon, -180, 180) {
		errorResponse(w, http.StatusBadRequest, "lat and lon query parameters are required and must be valid coordinates")
		return models.Location{}, false
	}
	return models.Location{Latitude: lat, Longitude: lon}, true
}
