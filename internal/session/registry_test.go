package session

import (
	"errors"
	"testing"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

func TestSend_NoLocalConnection(t *testing.T) {
	r := NewRegistry(nil, logger.InitLogger("test", logger.LevelError))

	userID, err := uuid.New()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}

	err = r.Send(userID, map[string]any{"type": "ping"})
	if !errors.Is(err, types.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for a user connected elsewhere, got %v", err)
	}
}
