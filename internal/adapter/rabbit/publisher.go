package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/metrics"
	"github.com/borauni/ride-dispatch/pkg/rabbit"
)

// DispatchExchange is a fanout exchange: every dispatch instance consumes
// every envelope and delivers to whichever recipients are connected locally.
const DispatchExchange = "dispatch_events"

type EventPublisher struct {
	client *rabbit.RabbitMQ
}

func NewEventPublisher(client *rabbit.RabbitMQ) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish sends an addressed event envelope to the dispatch exchange.
func (p *EventPublisher) Publish(ctx context.Context, envelope models.EventEnvelope) error {
	const op = "EventPublisher.Publish"

	body, err := json.Marshal(envelope)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionPublishEvent)
		return wrap.Error(ctx, fmt.Errorf("%s: marshal envelope: %w", op, err))
	}

	if err := p.client.EnsureConnection(ctx); err != nil {
		metrics.RecordEventPublished("dispatch", envelope.Event.Type.String(), err)
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if err := p.client.Channel.ExchangeDeclare(DispatchExchange, "fanout", true, false, false, false, nil); err != nil {
		metrics.RecordEventPublished("dispatch", envelope.Event.Type.String(), err)
		return wrap.Error(ctx, fmt.Errorf("%s: declare exchange: %w", op, err))
	}

	err = p.client.Channel.PublishWithContext(
		ctx,
		DispatchExchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionPublishEvent)
		metrics.RecordEventPublished("dispatch", envelope.Event.Type.String(), err)
		return wrap.Error(ctx, fmt.Errorf("%s: publish: %w", op, err))
	}

	metrics.RecordEventPublished("dispatch", envelope.Event.Type.String(), nil)
	return nil
}
