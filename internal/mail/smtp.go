// Package mail renders notification templates and delivers them over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/config"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

// templates maps an email kind to its parsed template. Each file defines
// "subject" and "body".
var templates = map[string]*template.Template{
	queue.EmailVerification:  template.Must(template.ParseFS(templateFS, "templates/email_verification.html")),
	queue.EmailPasswordReset: template.Must(template.ParseFS(templateFS, "templates/password_reset.html")),
}

const defaultTimeout = 30 * time.Second

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Render builds the Message for msg.
func Render(from string, msg queue.EmailMessage) (Message, error) {
	tpl, ok := templates[msg.Kind]
	if !ok {
		return Message{}, fmt.Errorf("mail: unknown kind %q", msg.Kind)
	}
	var subject, body bytes.Buffer
	if err := tpl.ExecuteTemplate(&subject, "subject", msg); err != nil {
		return Message{}, fmt.Errorf("mail: subject: %w", err)
	}
	if err := tpl.ExecuteTemplate(&body, "body", msg); err != nil {
		return Message{}, fmt.Errorf("mail: body: %w", err)
	}
	return Message{From: from, To: msg.To, Subject: strings.TrimSpace(subject.String()), HTML: body.String()}, nil
}

// Compose turns m into a go-mail message with an HTML body.
func (m Message) Compose() (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.From(m.From); err != nil {
		return nil, fmt.Errorf("mail: sender address: %w", err)
	}
	if err := gm.To(m.To); err != nil {
		return nil, fmt.Errorf("mail: recipient address: %w", err)
	}
	gm.Subject(m.Subject)
	gm.SetDate()
	gm.SetBodyString(gomail.TypeTextHTML, m.HTML)
	return gm, nil
}

// SMTPSender implements queue.Sender against an SMTP relay.
type SMTPSender struct {
	cfg     config.SMTPConfig
	deliver func(ctx context.Context, m *gomail.Msg) error
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s := &SMTPSender{cfg: cfg}
	s.deliver = s.dialAndSend
	return s
}

// Send renders msg and hands it to the relay. PLAIN auth is used when a
// user is configured.
func (s *SMTPSender) Send(ctx context.Context, msg queue.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := Render(s.cfg.From, msg)
	if err != nil {
		return err
	}
	gm, err := m.Compose()
	if err != nil {
		return err
	}
	return s.deliver(ctx, gm)
}

// dialAndSend runs one SMTP session. The connection carries a deadline of
// the configured timeout or ctx's deadline, whichever is sooner, and is
// closed as soon as ctx is done, so a stalled relay cannot block the caller.
func (s *SMTPSender) dialAndSend(ctx context.Context, m *gomail.Msg) error {
	var release func() bool
	defer func() {
		if release != nil {
			release()
		}
	}()

	dial := func(dctx context.Context, network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: s.cfg.Timeout}
		conn, err := d.DialContext(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(s.cfg.Timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		release = context.AfterFunc(ctx, func() { _ = conn.Close() })
		return conn, nil
	}

	opts := []gomail.Option{
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithDialContextFunc(dial),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.User),
			gomail.WithPassword(s.cfg.Pass),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("mail: send: %w", ctxErr)
		}
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}
