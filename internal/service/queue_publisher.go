package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/queue"
)

// Publisher delivers an email job to the broker.
type Publisher interface {
	Publish(ctx context.Context, job queue.EmailJob) error
}

// AMQPPublisher publishes EmailJob messages to the durable auth.email
// queue. A connection is opened per publish; email traffic is low and
// this keeps the request path free of shared broker state.
type AMQPPublisher struct {
	URL string
	Log *zap.Logger
}

func (p *AMQPPublisher) Publish(ctx context.Context, job queue.EmailJob) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so jobs survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.EmailQueueName, // name
		true,                 // durable
		false,                // autoDelete
		false,                // exclusive
		false,                // noWait
		nil,                  // args
	); err != nil {
		p.Log.Error("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                   // default exchange
		queue.EmailQueueName, // routing key = queue name
		false,                // mandatory
		false,                // immediate
		pub,
	); err != nil {
		p.Log.Error("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

// AsyncDispatcher hands email jobs to a Publisher on a detached goroutine
// so the HTTP response never waits on the broker. Delivery is
// at-most-once and best-effort: failures are logged, never retried and
// never reported to the caller.
type AsyncDispatcher struct {
	pub     Publisher
	log     *zap.Logger
	timeout time.Duration
}

func NewAsyncDispatcher(pub Publisher, log *zap.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{pub: pub, log: log, timeout: 10 * time.Second}
}

// Dispatch returns immediately. The request context only contributes its
// values; its cancellation does not abort the publish.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, job queue.EmailJob) {
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		pctx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()
		if err := d.pub.Publish(pctx, job); err != nil {
			d.log.Warn("email dispatch dropped",
				zap.String("kind", string(job.Kind)),
				zap.String("email", job.Email),
				zap.Error(err))
		}
	}()
}
