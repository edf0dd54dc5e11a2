package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/uuid"
	ws "github.com/borauni/ride-dispatch/pkg/wsHub"
)

// SessionStore persists presence rows shared by all dispatch instances.
type SessionStore interface {
	Open(ctx context.Context, session *models.Session) (*models.Session, error)
	Close(ctx context.Context, sessionID uuid.UUID) error
	UpdateLocation(ctx context.Context, sessionID uuid.UUID, loc models.Location) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineDrivers(ctx context.Context) ([]models.OnlineDriver, error)
}

// Handle ties a live WebSocket connection to its presence row so both are
// released together on disconnect.
type Handle struct {
	Session *models.Session
	Conn    *ws.Conn
}

// Registry owns who is connected: one live connection per user on this
// instance (a new attach supersedes the old), plus the durable presence row
// every instance can see.
type Registry struct {
	hub   *ws.ConnectionHub
	store SessionStore
	log   logger.Logger
}

func NewRegistry(store SessionStore, log logger.Logger) *Registry {
	return &Registry{
		hub:   ws.NewConnHub(log),
		store: store,
		log:   log,
	}
}

// Register attaches an upgraded connection for the user. A previous
// connection of the same user is closed and its presence row superseded.
func (r *Registry) Register(ctx context.Context, userID uuid.UUID, role types.UserRole, loc *models.Location, socket *websocket.Conn) (*Handle, error) {
	ctx = wrap.WithAction(ctx, types.ActionSessionAttach)

	sessionID, err := uuid.New()
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("registry: session id: %w", err))
	}

	session, err := r.store.Open(ctx, &models.Session{
		ID:       sessionID,
		UserID:   userID,
		Role:     role,
		Location: loc,
	})
	if err != nil {
		return nil, err
	}

	conn := ws.NewConn(ctx, userID, socket)
	if err := r.hub.Add(conn); err != nil {
		_ = r.store.Close(ctx, session.ID)
		return nil, wrap.Error(ctx, fmt.Errorf("registry: add connection: %w", err))
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues("dispatch").Inc()
	if role == types.DriverRole {
		metrics.DriversOnlineGauge.WithLabelValues("dispatch").Inc()
	}

	r.log.Info(ctx, "session registered", "user_id", userID, "role", role.String())
	return &Handle{Session: session, Conn: conn}, nil
}

// Unregister releases the handle. Safe to call after the connection was
// superseded: the hub ignores stale conns and the presence row is already
// closed.
func (r *Registry) Unregister(ctx context.Context, h *Handle) {
	ctx = wrap.WithAction(ctx, types.ActionSessionDetach)

	if err := r.store.Close(ctx, h.Session.ID); err != nil {
		r.log.Warn(ctx, "close session row failed", "error", err.Error())
	}
	if err := r.hub.Delete(h.Session.UserID, h.Conn); err != nil && !errors.Is(err, ws.ErrConnIsNotFound) {
		r.log.Warn(ctx, "remove connection failed", "error", err.Error())
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues("dispatch").Dec()
	if h.Session.Role == types.DriverRole {
		metrics.DriversOnlineGauge.WithLabelValues("dispatch").Dec()
	}

	r.log.Info(ctx, "session unregistered", "user_id", h.Session.UserID)
}

// UpdateLocation stores a fresh coordinate report from a driver connection.
func (r *Registry) UpdateLocation(ctx context.Context, h *Handle, loc models.Location) error {
	h.Session.Location = &loc
	return r.store.UpdateLocation(ctx, h.Session.ID, loc)
}

// Send pushes a message to the user's live connection on this instance.
// Returns ErrSessionNotFound when the user is not connected here.
func (r *Registry) Send(userID uuid.UUID, msg any) error {
	if err := r.hub.SendTo(userID, msg); err != nil {
		if errors.Is(err, ws.ErrConnIsNotFound) {
			return types.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// IsOnline reports presence across all instances.
func (r *Registry) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.store.IsOnline(ctx, userID)
}

// OnlineDrivers returns the cross-instance online-driver set with their last
// reported locations.
func (r *Registry) OnlineDrivers(ctx context.Context) ([]models.OnlineDriver, error) {
	return r.store.OnlineDrivers(ctx)
}

// Close tears down every local connection, for shutdown.
func (r *Registry) Close() {
	r.hub.Close()
}
