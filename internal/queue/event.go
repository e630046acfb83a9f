// Package queue defines message payloads exchanged over the message broker.
package queue

// Durable queues used by the API.
const (
	EmailQueue   = "email.outbound"
	BookingQueue = "booking.events"
)

// Email kinds carried by EmailMessage.
const (
	EmailVerification  = "email_verification"
	EmailPasswordReset = "password_reset"
)

// EmailMessage asks the mail consumer to deliver one templated email. URL
// holds the single-use link; the raw token inside it is never persisted.
type EmailMessage struct {
	Kind      string `json:"kind"`
	To        string `json:"to"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// BookingEvent is published after a booking is created, changes status or
// is deleted. It carries enough for downstream consumers to audit or notify
// without querying the primary database.
type BookingEvent struct {
	Kind         string `json:"kind"`
	BookingID    uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	TourID       uint64 `json:"tour_id"`
	Participants int    `json:"participants"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}
