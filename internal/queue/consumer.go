package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/mail"
)

// EmailConsumer renders EmailJob messages and hands them to a mail.Sender.
type EmailConsumer struct {
	URL     string
	BaseURL string
	Sender  mail.Sender
	Log     *zap.Logger
}

// Run connects to RabbitMQ, declares the auth.email queue (durable) and
// consumes jobs until ctx is cancelled. Broker failures trigger a
// reconnect with exponential backoff capped at 30s. Jobs that cannot be
// decoded or delivered are rejected without requeue.
func (c *EmailConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("email-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("email-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *EmailConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.Log.Warn("email-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(EmailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.Log.Error("email-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *EmailConsumer) handleMessage(ctx context.Context, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	msg, err := Render(c.BaseURL, job)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.Sender.Send(sendCtx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", job.Kind, job.Email, err)
	}
	return nil
}

// Render turns a job into the message its kind calls for.
func Render(baseURL string, job EmailJob) (mail.Message, error) {
	if job.Email == "" || job.Token == "" {
		return mail.Message{}, errors.New("email job missing email or token")
	}
	switch job.Kind {
	case EmailVerification:
		return mail.VerificationMessage(baseURL, job.Email, job.Token), nil
	case EmailPasswordReset:
		return mail.PasswordResetMessage(baseURL, job.Email, job.Token), nil
	}
	return mail.Message{}, fmt.Errorf("unknown email kind %q", job.Kind)
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
