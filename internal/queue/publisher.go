package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const notificationQueueName = "notification.email"

// Publisher enqueues notification events for asynchronous delivery.
// The dispatcher depends on this interface so tests can capture events
// without a broker.
type Publisher interface {
	PublishNotification(ctx context.Context, ev NotificationEvent) error
}

// AMQPPublisher publishes to a durable RabbitMQ queue.  Errors are
// logged and returned so callers can ignore failures without
// interrupting the main request flow.
type AMQPPublisher struct {
	URL string
}

// NewAMQPPublisher returns a publisher for the given broker URL.
func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{URL: url} }

// PublishNotification publishes a NotificationEvent to the
// notification.email queue.  Messages are marked persistent so they
// survive broker restarts.
func (p *AMQPPublisher) PublishNotification(ctx context.Context, ev NotificationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(notificationQueueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", notificationQueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
