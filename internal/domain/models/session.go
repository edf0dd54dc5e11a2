package models

import (
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Session is the durable trace of a connected user. The WebSocket handle
// itself lives in the connection hub; this row is shared presence state so
// every dispatch instance sees the same online-driver set.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Role        types.UserRole
	Location    *Location
	ConnectedAt time.Time
	EndedAt     *time.Time
}

// OnlineDriver is a driver visible to the candidate selector.
type OnlineDriver struct {
	DriverID uuid.UUID
	Location *Location
}
