package mail

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/config"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/queue"
)

func TestRender_EscapesAndFillsLink(t *testing.T) {
	m, err := Render("Natours <no-reply@natours.io>", queue.EmailMessage{
		Kind: queue.EmailPasswordReset,
		To:   "jonas@example.com",
		Name: "<b>Jonas</b>",
		URL:  "https://natours.test/api/v1/users/resetPassword/abc123",
	})

	require.NoError(t, err)
	assert.Equal(t, "Your password reset token (valid for 10 minutes)", m.Subject)
	assert.Contains(t, m.HTML, "https://natours.test/api/v1/users/resetPassword/abc123")
	assert.Contains(t, m.HTML, "&lt;b&gt;Jonas&lt;/b&gt;")
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render("a@b.c", queue.EmailMessage{Kind: "newsletter"})

	assert.Error(t, err)
}

func TestMessageCompose_Headers(t *testing.T) {
	m := Message{From: "Natours <a@b.c>", To: "d@e.f", Subject: "Hi", HTML: "<p>x</p>"}

	gm, err := m.Compose()

	require.NoError(t, err)
	require.Len(t, gm.GetFrom(), 1)
	assert.Equal(t, "a@b.c", gm.GetFrom()[0].Address)
	assert.Equal(t, "d@e.f", gm.GetTo()[0].Address)
	assert.Equal(t, []string{"Hi"}, gm.GetGenHeader(gomail.HeaderSubject))
}

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{
		Host: "smtp.test", Port: 2525, User: "u", Pass: "p", From: "Natours <no-reply@natours.io>",
	})
	var got *gomail.Msg
	s.deliver = func(_ context.Context, m *gomail.Msg) error {
		got = m
		return nil
	}

	err := s.Send(context.Background(), queue.EmailMessage{
		Kind: queue.EmailVerification, To: "Jonas <jonas@example.com>", Name: "Jonas", URL: "https://x/verify/t",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "no-reply@natours.io", got.GetFrom()[0].Address)
	assert.Equal(t, "jonas@example.com", got.GetTo()[0].Address)
	assert.Equal(t, []string{"Verify your Natours email address (valid for 10 minutes)"},
		got.GetGenHeader(gomail.HeaderSubject))
}

func TestSMTPSender_Failures(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "smtp.test", Port: 25, From: "no-reply@natours.io"})
	boom := errors.New("relay refused")
	s.deliver = func(context.Context, *gomail.Msg) error { return boom }

	err := s.Send(context.Background(), queue.EmailMessage{Kind: queue.EmailVerification, To: "a@b.c"})
	assert.ErrorIs(t, err, boom)

	err = s.Send(context.Background(), queue.EmailMessage{Kind: queue.EmailVerification, To: "not an address"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, queue.EmailMessage{Kind: queue.EmailVerification, To: "a@b.c"}), context.Canceled)
}

// silentRelay accepts connections and never writes a greeting.
func silentRelay(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func TestSMTPSender_StalledRelayHonoursDeadline(t *testing.T) {
	host, port := silentRelay(t)
	s := NewSMTPSender(config.SMTPConfig{Host: host, Port: port, From: "no-reply@natours.io"})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Send(ctx, queue.EmailMessage{Kind: queue.EmailVerification, To: "a@b.c"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSMTPSender_StalledRelayHonoursCancel(t *testing.T) {
	host, port := silentRelay(t)
	s := NewSMTPSender(config.SMTPConfig{Host: host, Port: port, From: "no-reply@natours.io"})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	err := s.Send(ctx, queue.EmailMessage{Kind: queue.EmailVerification, To: "a@b.c"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSMTPSender_StalledRelayHonoursTimeout(t *testing.T) {
	host, port := silentRelay(t)
	s := NewSMTPSender(config.SMTPConfig{Host: host, Port: port, From: "no-reply@natours.io", Timeout: 300 * time.Millisecond})

	start := time.Now()
	err := s.Send(context.Background(), queue.EmailMessage{Kind: queue.EmailVerification, To: "a@b.c"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}
