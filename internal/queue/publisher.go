package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// Publisher publishes emails and booking events to RabbitMQ. It dials per
// message, so a broker outage surfaces as an error on that publish and the
// next one reconnects on its own.
type Publisher struct {
	url  string
	now  func() time.Time
	send func(ctx context.Context, queue string, body []byte) error
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	p := &Publisher{url: url, now: time.Now}
	p.send = p.publish
	return p
}

// SendEmailVerification queues the verification email for u. An error means
// the message was not accepted by the broker.
func (p *Publisher) SendEmailVerification(ctx context.Context, u model.User, url string) error {
	return p.email(ctx, EmailVerification, u, url)
}

// SendPasswordReset queues the password reset email for u.
func (p *Publisher) SendPasswordReset(ctx context.Context, u model.User, url string) error {
	return p.email(ctx, EmailPasswordReset, u, url)
}

func (p *Publisher) email(ctx context.Context, kind string, u model.User, url string) error {
	return p.encode(ctx, EmailQueue, EmailMessage{
		Kind:      kind,
		To:        u.Email,
		Name:      firstName(u.Name),
		URL:       url,
		CreatedAt: p.now().UTC().Format(time.RFC3339),
	})
}

// PublishBookingEvent queues a booking lifecycle event.
func (p *Publisher) PublishBookingEvent(ctx context.Context, kind string, b model.Booking) error {
	return p.encode(ctx, BookingQueue, BookingEvent{
		Kind:         kind,
		BookingID:    b.ID,
		UserID:       b.UserID,
		TourID:       b.TourID,
		Participants: b.Participants,
		Status:       b.Status,
		OccurredAt:   p.now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) encode(ctx context.Context, queue string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", queue, err)
	}
	return p.send(ctx, queue, body)
}

// publish declares queue (idempotent, durable) and sends body to it through
// the default exchange as a persistent message.
func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		logger.Warn("rabbitmq: dial failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		logger.Warn("rabbitmq: queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		logger.Warn("rabbitmq: publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}
