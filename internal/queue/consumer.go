package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
)

// Handler processes one delivery body. A failed message is requeued once;
// errors wrapping ErrPermanent drop it straight away.
type Handler func(ctx context.Context, body []byte) error

// ErrPermanent marks a message that can never be handled, such as a body
// that does not decode.
var ErrPermanent = errors.New("permanent failure")

// Sender delivers an EmailMessage to its recipient.
type Sender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

const maxBackoff = 30 * time.Second

// Consume connects to the broker at url and feeds every message of queue to
// h. It reconnects with exponential backoff whenever the connection drops
// and returns only when ctx is cancelled.
func Consume(ctx context.Context, url, queue string, prefetch int, h Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("consumer: failed to dial broker", zap.String("queue", queue),
				zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, prefetch, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("consumer: consume loop ended, reconnecting", zap.String("queue", queue), zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, prefetch int, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		logger.Warn("consumer: set QoS failed", zap.String("queue", queue), zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
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
			err := h(ctx, d.Body)
			if err != nil {
				logger.Error("consumer: handle message failed", zap.String("queue", queue),
					zap.Bool("redelivered", d.Redelivered), zap.Error(err))
			}
			settle(ctx, d, err)
		}
	}
}

// settle acknowledges d according to the handler result. A first failure
// goes back to the queue so a short relay outage does not lose the message.
// A message interrupted by shutdown is always requeued.
func settle(ctx context.Context, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case ctx.Err() != nil:
		_ = d.Nack(false, true)
	case errors.Is(err, ErrPermanent), d.Redelivered:
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, true)
	}
}

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

// EmailHandler decodes EmailMessage bodies and hands them to s.
func EmailHandler(s Sender) Handler {
	return func(ctx context.Context, body []byte) error {
		var msg EmailMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: unmarshal: %v", ErrPermanent, err)
		}
		if msg.To == "" {
			return fmt.Errorf("%w: email message without recipient", ErrPermanent)
		}
		if err := s.Send(ctx, msg); err != nil {
			return fmt.Errorf("send %s to %s: %w", msg.Kind, msg.To, err)
		}
		logger.Info("email delivered", zap.String("kind", msg.Kind), zap.String("to", msg.To))
		return nil
	}
}

// StartEmailConsumer delivers queued emails through s until ctx is done.
func StartEmailConsumer(ctx context.Context, url string, s Sender) error {
	return Consume(ctx, url, EmailQueue, 10, EmailHandler(s))
}

// AuditHandler appends one line per BookingEvent to the file at path.
func AuditHandler(path string) Handler {
	return func(_ context.Context, body []byte) error {
		var ev BookingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: unmarshal: %v", ErrPermanent, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | tour_id=%d | participants=%d | status=%s\n",
			ev.OccurredAt, ev.Kind, ev.BookingID, ev.UserID, ev.TourID, ev.Participants, ev.Status)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}

// StartBookingAuditConsumer writes booking events to path until ctx is done.
func StartBookingAuditConsumer(ctx context.Context, url, path string) error {
	return Consume(ctx, url, BookingQueue, 50, AuditHandler(path))
}
