// Package mail renders and delivers the verification and password reset
// emails produced by the auth flows.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage links to the verify-email endpoint.
func VerificationMessage(baseURL, to, token string) Message {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", baseURL, url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Verify your email address",
		HTML: fmt.Sprintf(`<h1>Welcome!</h1>
<p>Please confirm your email address by following the link below:</p>
<a href="%s">Verify email</a>`, link),
	}
}

// PasswordResetMessage carries the reset token for the reset-password endpoint.
func PasswordResetMessage(baseURL, to, token string) Message {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", baseURL, url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(`<h1>Password reset requested</h1>
<p>If you did not request a password reset, ignore this message.</p>
<a href="%s">Reset password</a>`, link),
	}
}

// NewSender returns an SMTP sender when a relay host is configured and a
// logging sender otherwise.
func NewSender(cfg config.SMTPConfig, log *zap.Logger) Sender {
	if cfg.Host == "" {
		return &LogSender{log: log}
	}
	return &SMTPSender{cfg: cfg, log: log}
}

type SMTPSender struct {
	cfg config.SMTPConfig
	log *zap.Logger
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		s.log.Error("send mail failed", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.Info("mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// deliver runs one SMTP session bound to ctx: the dial honours it, its
// deadline becomes the connection deadline and cancellation closes the
// connection.
func (s *SMTPSender) deliver(ctx context.Context, msg Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(compose(s.cfg.From, msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func compose(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	// The body carries a live token and stays out of the log.
	s.log.Info("mail (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
