// Package queue defines the email job payload exchanged over RabbitMQ and
// the consumer that turns jobs into delivered mail.
package queue

import "time"

// EmailQueueName is the durable queue carrying EmailJob messages.
const EmailQueueName = "auth.email"

// EmailKind selects the template rendered for a job.
type EmailKind string

const (
	EmailVerification  EmailKind = "verification"
	EmailPasswordReset EmailKind = "password_reset"
)

// EmailJob is published by the auth handlers whenever a verification or
// reset email must be sent. The token is already signed; consumers only
// render and deliver.
type EmailJob struct {
	Kind        EmailKind `json:"kind"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	RequestedAt time.Time `json:"requested_at"`
}
