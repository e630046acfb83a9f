package model

import "time"

// Booking statuses. A cancelled booking has released its seats and is final.
const (
    BookingPending   = "pending"
    BookingConfirmed = "confirmed"
    BookingCancelled = "cancelled"
)

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s string) bool {
    switch s {
    case BookingPending, BookingConfirmed, BookingCancelled:
        return true
    }
    return false
}

// Booking is a row of the `bookings` table. At most one exists per
// (UserID, TourID).
type Booking struct {
    ID           uint64    `json:"id"`           // bookings.id
    UserID       uint64    `json:"user"`         // bookings.user_id
    TourID       uint64    `json:"tour"`         // bookings.tour_id
    Participants int       `json:"participants"` // bookings.participants
    Status       string    `json:"status"`       // bookings.status
    CreatedAt    time.Time `json:"createdAt"`    // bookings.created_at
}

// HoldsSeats reports whether the booking still counts against tour capacity.
func (b Booking) HoldsSeats() bool { return b.Status != BookingCancelled }
