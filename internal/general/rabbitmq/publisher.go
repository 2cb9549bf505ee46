package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout      = 5 * time.Second
	confirmDrainTimeout = 2 * time.Second
)

// Publisher sends persistent JSON messages through the shared Client and
// waits for the broker confirm. The Notifier is its only in-process caller.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends one message to an exchange with the given routing key and
// blocks until the broker confirms (or the publish timeout fires).
func (publisher *Publisher) Publish(exchange, routingKey string, body []byte) error {
	client := publisher.client

	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	// the confirm stream is per-channel and ordered: serialize publishes so
	// each confirm read below pairs with the publish that precedes it
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return err
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
		return nil
	case <-ctx.Done():
		// drain the pending confirm so the stream stays aligned for the
		// next publish, then report the timeout
		select {
		case confirm := <-confirms:
			if !confirm.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(confirmDrainTimeout):
		}
		return ctx.Err()
	}
}
