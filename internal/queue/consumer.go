package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/haneulsoft/reserve-notify/internal/model"
)

// EventHandler reacts to one reservation lifecycle event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.ReservationEvent) error
}

// ReservationConsumer reads reservation lifecycle events off a RabbitMQ
// queue and feeds them to the rule evaluator. Malformed bodies are
// rejected without requeue; handler failures are redelivered once.
type ReservationConsumer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	handler  EventHandler
	logger   *slog.Logger
}

func NewReservationConsumer(conn *amqp.Connection, queue string, handler EventHandler, logger *slog.Logger) *ReservationConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationConsumer{
		conn:     conn,
		queue:    queue,
		prefetch: 50,
		handler:  handler,
		logger:   logger,
	}
}

// Start consumes until ctx is cancelled or the channel closes.
func (c *ReservationConsumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consume on %s: %w", c.queue, err)
	}

	c.logger.Info("reservation event consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.queue)
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *ReservationConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var ev model.ReservationEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.logger.Error("dropping malformed reservation event", "error", err)
		_ = msg.Reject(false)
		return
	}

	if err := c.handler.HandleEvent(ctx, ev); err != nil {
		requeue := !msg.Redelivered
		if requeue {
			c.logger.Warn("event handling failed, requeueing once",
				"reservation_id", ev.Reservation.ID, "error", err)
		} else {
			c.logger.Error("event handling failed on redelivery, dropping",
				"reservation_id", ev.Reservation.ID, "error", err)
		}
		_ = msg.Nack(false, requeue)
		return
	}

	_ = msg.Ack(false)
}
