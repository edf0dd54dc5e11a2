package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

type fakeSender struct {
	online map[uuid.UUID]bool
	sent   map[uuid.UUID][]any
	err    error
}

func newFakeSender() *fakeSender {
	return &fakeSender{online: make(map[uuid.UUID]bool), sent: make(map[uuid.UUID][]any)}
}

func (s *fakeSender) Send(userID uuid.UUID, msg any) error {
	if s.err != nil {
		return s.err
	}
	if !s.online[userID] {
		return types.ErrSessionNotFound
	}
	s.sent[userID] = append(s.sent[userID], msg)
	return nil
}

type fakeBus struct {
	published []models.EventEnvelope
	err       error
}

func (b *fakeBus) Publish(_ context.Context, envelope models.EventEnvelope) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, envelope)
	return nil
}

func testEvent(t *testing.T) models.DispatchEvent {
	t.Helper()
	rideID, err := uuid.New()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return models.DispatchEvent{Type: types.EventNewRide, RideID: rideID, Seq: 1}
}

func TestNotify_PublishesToBus(t *testing.T) {
	bus := &fakeBus{}
	sender := newFakeSender()
	n := New(bus, sender, logger.InitLogger("test", logger.LevelError))

	recipient, _ := uuid.New()
	n.Notify(context.Background(), []uuid.UUID{recipient}, testEvent(t))

	if len(bus.published) != 1 {
		t.Fatalf("expected one envelope on the bus, got %d", len(bus.published))
	}
	if len(sender.sent) != 0 {
		t.Fatal("bus path must not deliver locally; the consumer does that")
	}
}

func TestNotify_NoBusDeliversLocally(t *testing.T) {
	sender := newFakeSender()
	n := New(nil, sender, logger.InitLogger("test", logger.LevelError))

	recipient, _ := uuid.New()
	sender.online[recipient] = true

	n.Notify(context.Background(), []uuid.UUID{recipient}, testEvent(t))

	if len(sender.sent[recipient]) != 1 {
		t.Fatalf("expected one local delivery, got %d", len(sender.sent[recipient]))
	}
}

func TestNotify_BusFailureFallsBackLocally(t *testing.T) {
	bus := &fakeBus{err: errors.New("broker down")}
	sender := newFakeSender()
	n := New(bus, sender, logger.InitLogger("test", logger.LevelError))

	recipient, _ := uuid.New()
	sender.online[recipient] = true

	n.Notify(context.Background(), []uuid.UUID{recipient}, testEvent(t))

	if len(sender.sent[recipient]) != 1 {
		t.Fatalf("expected local fallback delivery, got %d", len(sender.sent[recipient]))
	}
}

func TestNotify_EmptyRecipientsIsNoop(t *testing.T) {
	bus := &fakeBus{}
	n := New(bus, newFakeSender(), logger.InitLogger("test", logger.LevelError))

	n.Notify(context.Background(), nil, testEvent(t))

	if len(bus.published) != 0 {
		t.Fatal("empty recipient set must not publish")
	}
}

func TestDeliver_SkipsOfflineRecipients(t *testing.T) {
	sender := newFakeSender()
	n := New(nil, sender, logger.InitLogger("test", logger.LevelError))

	here, _ := uuid.New()
	elsewhere, _ := uuid.New()
	sender.online[here] = true

	err := n.Deliver(context.Background(), models.EventEnvelope{
		Recipients: []uuid.UUID{elsewhere, here},
		Event:      testEvent(t),
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if len(sender.sent[here]) != 1 {
		t.Fatalf("connected recipient must get the event")
	}
	if len(sender.sent[elsewhere]) != 0 {
		t.Fatalf("absent recipient must be skipped")
	}
}

func TestDeliver_SendErrorDoesNotAbort(t *testing.T) {
	sender := newFakeSender()
	sender.err = errors.New("write failed")
	n := New(nil, sender, logger.InitLogger("test", logger.LevelError))

	recipient, _ := uuid.New()
	err := n.Deliver(context.Background(), models.EventEnvelope{
		Recipients: []uuid.UUID{recipient},
		Event:      testEvent(t),
	})
	if err != nil {
		t.Fatalf("deliver must swallow per-recipient failures, got %v", err)
	}
}
