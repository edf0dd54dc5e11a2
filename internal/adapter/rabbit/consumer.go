package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/pkg/logger"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/rabbit"
)

type EventConsumer struct {
	client *rabbit.RabbitMQ
	l      logger.Logger
}

func NewEventConsumer(client *rabbit.RabbitMQ, l logger.Logger) *EventConsumer {
	return &EventConsumer{client: client, l: l}
}

// HandlerFunc receives a decoded event envelope from the bus.
type HandlerFunc func(ctx context.Context, envelope models.EventEnvelope) error

// Consume binds an exclusive auto-delete queue to the dispatch fanout
// exchange and feeds every envelope to fn until ctx is cancelled. The queue
// is per-instance: fanout gives each instance its own copy.
func (c *EventConsumer) Consume(ctx context.Context, fn HandlerFunc) error {
	const op = "EventConsumer.Consume"

	for {
		if ctx.Err() != nil {
			c.l.Debug(ctx, "event consumer stopped by context")
			return nil
		}

		if err := c.client.EnsureConnection(ctx); err != nil {
			c.l.Error(ctx, "ensure connection failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := c.client.Channel.ExchangeDeclare(DispatchExchange, "fanout", true, false, false, false, nil); err != nil {
			c.l.Error(ctx, "declare exchange failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		q, err := c.declareAndBindQueue(ctx)
		if err != nil {
			c.l.Error(ctx, "declare queue failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		msgs, err := c.client.Channel.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			c.l.Error(ctx, "consume failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		c.l.Info(ctx, "start consuming dispatch events", "queue", q.Name)

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				c.l.Info(ctx, "event consumer shutting down", "op", op)
				return nil

			case msg, ok := <-msgs:
				if !ok {
					c.l.Warn(ctx, "message channel closed, reconnecting", "op", op)
					time.Sleep(2 * time.Second)
					break consumeLoop
				}

				c.handleMessage(ctx, fn, msg)
			}
		}
	}
}

// declareAndBindQueue declares the per-instance queue and binds it to the
// exchange. Empty name lets the broker generate a unique one; exclusive +
// auto-delete means the queue dies with the connection.
func (c *EventConsumer) declareAndBindQueue(ctx context.Context) (amqp.Queue, error) {
	const op = "EventConsumer.declareAndBindQueue"

	q, err := c.client.Channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: declare queue: %w", op, err))
	}

	if err := c.client.Channel.QueueBind(q.Name, "", DispatchExchange, false, nil); err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: bind queue: %w", op, err))
	}

	return q, nil
}

func (c *EventConsumer) handleMessage(ctx context.Context, fn HandlerFunc, msg amqp.Delivery) {
	const op = "EventConsumer.handleMessage"

	var envelope models.EventEnvelope
	if err := json.Unmarshal(msg.Body, &envelope); err != nil {
		c.l.Error(ctx, "decode envelope failed", err, "op", op)
		_ = msg.Nack(false, false)
		return
	}

	if err := fn(ctx, envelope); err != nil {
		// Delivery problems never requeue: state stays pullable over HTTP
		// and a redelivered realtime event is worth less than a fresh one.
		c.l.Warn(ctx, "envelope handler failed", "op", op, "error", err.Error())
		_ = msg.Reject(false)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.l.Warn(ctx, "ack failed", "op", op, "error", err.Error())
	}
}
