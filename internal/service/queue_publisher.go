// Package queue_publisher publishes item change events to RabbitMQ.  Errors
// are returned, never logged here; the HTTP layer decides what to report.
package queue_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/item-registry/internal/queue"
)

// Publisher sends item events to one durable queue.  A connection is opened
// per publish, so a broker restart never leaves the publisher holding a dead
// channel.
type Publisher struct {
	URL   string
	Queue string
}

// New returns a Publisher for the given broker URL and queue name.
func New(url, queue string) *Publisher {
	return &Publisher{URL: url, Queue: queue}
}

// message wraps ev as a persistent JSON delivery.  Type and the item_id
// header let consumers route on the change without decoding the body.
func message(ev q.ItemChangedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s event: %w", ev.Action, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         "item." + ev.Action,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"item_id": strconv.Itoa(ev.ItemID)},
		Body:         body,
	}, nil
}

// Publish delivers ev to the configured queue, declaring it first.
func (p *Publisher) Publish(ctx context.Context, ev q.ItemChangedEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", p.Queue, err)
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, msg); err != nil {
		return fmt.Errorf("publish item %d to %s: %w", ev.ItemID, p.Queue, err)
	}
	return nil
}
