package mail

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/auth-service/internal/config"
)

func TestVerificationMessage(t *testing.T) {
	msg := VerificationMessage("https://app.example.com", "a@x.com", "tok+en")

	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.HTML, "https://app.example.com/auth/verify-email?token=tok%2Ben")
}

func TestPasswordResetMessage(t *testing.T) {
	msg := PasswordResetMessage("https://app.example.com", "a@x.com", "abc")

	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.HTML, "https://app.example.com/auth/reset-password?token=abc")
}

func TestCompose(t *testing.T) {
	raw := string(compose("noreply@example.com", Message{To: "a@x.com", Subject: "Hi", HTML: "<p>x</p>"}))

	assert.True(t, strings.HasPrefix(raw, "From: noreply@example.com\r\n"))
	assert.Contains(t, raw, "Subject: Hi\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>x</p>"))
}

func TestNewSender_LogOnlyWithoutHost(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewSender(config.SMTPConfig{}, zap.New(core))

	_, ok := s.(*LogSender)
	require.True(t, ok)

	msg := VerificationMessage("https://app.example.com", "a@x.com", "live-token")
	require.NoError(t, s.Send(context.Background(), msg))
	require.Equal(t, 1, logs.FilterField(zap.String("to", "a@x.com")).Len())
	for _, entry := range logs.All() {
		for k, v := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), "live-token", "field %s", k)
		}
	}
}

func TestNewSender_SMTPWithHost(t *testing.T) {
	s := NewSender(config.SMTPConfig{Host: "smtp.example.com", Port: "587"}, zap.NewNop())

	_, ok := s.(*SMTPSender)
	require.True(t, ok)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := &SMTPSender{cfg: config.SMTPConfig{Host: "127.0.0.1", Port: "1"}, log: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Send(ctx, Message{To: "a@x.com"}), context.Canceled)
}

// serveSMTP answers one session on ln with a minimal relay and returns
// the DATA payload it received.
func serveSMTP(t *testing.T, ln net.Listener) <-chan string {
	t.Helper()
	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ready")
		var data string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				out <- data
				return
			}
			switch cmd := strings.ToUpper(strings.Fields(line + " x")[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				b, _ := tp.ReadDotBytes()
				data = string(b)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- data
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return out
}

func listen(t *testing.T) (net.Listener, string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ln, host, port
}

func TestSMTPSender_Delivers(t *testing.T) {
	ln, host, port := listen(t)
	got := serveSMTP(t, ln)
	s := NewSender(config.SMTPConfig{Host: host, Port: port, From: "noreply@example.com"}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, Message{To: "a@x.com", Subject: "Hi", HTML: "<p>x</p>"}))

	select {
	case data := <-got:
		assert.Contains(t, data, "Subject: Hi")
		assert.Contains(t, data, "<p>x</p>")
	case <-time.After(5 * time.Second):
		t.Fatal("relay saw no message")
	}
}

func TestSMTPSender_StalledRelayHonoursDeadline(t *testing.T) {
	ln, host, port := listen(t)
	// accept and never greet
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(10 * time.Second)
	}()
	s := &SMTPSender{cfg: config.SMTPConfig{Host: host, Port: port}, log: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.Error(t, s.Send(ctx, Message{To: "a@x.com"}))
	assert.Less(t, time.Since(start), 3*time.Second)
}
