package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeclareQueue declares the durable notification queue on ch.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// QueuePublisher hands messages to a durable AMQP queue. The notifier-worker
// consumes the queue and performs the actual delivery.
type QueuePublisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewQueuePublisher(conn *amqp.Connection, queue string) (*QueuePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := DeclareQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	return &QueuePublisher{ch: ch, queue: queue}, nil
}

func (p *QueuePublisher) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	// channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (p *QueuePublisher) Close() error {
	return p.ch.Close()
}

// Consume delivers queued messages through next until ctx is done. A message
// that fails delivery is requeued once; malformed payloads are dropped.
func Consume(ctx context.Context, ch *amqp.Channel, queue string, next Notifier, log *zap.Logger) error {
	if err := DeclareQueue(ch, queue); err != nil {
		return err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			handleDelivery(ctx, d, next, log)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, next Notifier, log *zap.Logger) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Error("drop malformed notification", zap.Error(err))
		_ = d.Reject(false)
		return
	}

	if err := next.Notify(ctx, msg); err != nil {
		log.Warn("notification delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}
