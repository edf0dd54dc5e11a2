package notifier

import (
	"context"
	"errors"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// Bus carries addressed envelopes between dispatch instances.
type Bus interface {
	Publish(ctx context.Context, envelope models.EventEnvelope) error
}

// LocalSender pushes a message to a session connected to this instance.
type LocalSender interface {
	Send(userID uuid.UUID, msg any) error
}

// Notifier pushes persisted lifecycle events to live sessions. It is fire
// and forget end to end: sequence numbers come from the event store, the
// bus spreads envelopes across instances, and anything undeliverable is
// dropped because state stays pullable over HTTP.
type Notifier struct {
	bus   Bus
	local LocalSender
	log   logger.Logger
}

func New(bus Bus, local LocalSender, log logger.Logger) *Notifier {
	return &Notifier{bus: bus, local: local, log: log}
}

// Notify addresses the event to recipients and hands it to the bus. Every
// instance, this one included, consumes the envelope and delivers to its
// local sessions. With no bus configured delivery is local only.
func (n *Notifier) Notify(ctx context.Context, recipients []uuid.UUID, event models.DispatchEvent) {
	if len(recipients) == 0 {
		return
	}

	ctx = wrap.WithAction(ctx, types.ActionPublishEvent)
	envelope := models.EventEnvelope{Recipients: recipients, Event: event}

	if n.bus == nil {
		_ = n.Deliver(ctx, envelope)
		return
	}

	if err := n.bus.Publish(ctx, envelope); err != nil {
		n.log.Warn(ctx, "bus publish failed, delivering locally only",
			"event_type", event.Type.String(), "error", err.Error())
		_ = n.Deliver(ctx, envelope)
	}
}

// Deliver pushes a consumed envelope to whichever recipients hold a session
// here. Recipients connected elsewhere are someone else's copy to handle; a
// recipient connected nowhere just misses the realtime push.
func (n *Notifier) Deliver(ctx context.Context, envelope models.EventEnvelope) error {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, envelope.Event.RideID.String()), types.ActionDeliverEvent)

	for _, recipient := range envelope.Recipients {
		err := n.local.Send(recipient, envelope.Event)
		if err != nil {
			if errors.Is(err, types.ErrSessionNotFound) {
				continue
			}
			metrics.RecordEventDelivered("dispatch", envelope.Event.Type.String(), err)
			n.log.Warn(ctx, "event delivery failed",
				"recipient", recipient, "event_type", envelope.Event.Type.String(), "error", err.Error())
			continue
		}
		metrics.RecordEventDelivered("dispatch", envelope.Event.Type.String(), nil)
	}

	return nil
}
