package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// Booking event kinds.
const (
	BookingEventCreated   = "booking.created"
	BookingEventUpdated   = "booking.updated"
	BookingEventCancelled = "booking.cancelled"
	BookingEventDeleted   = "booking.deleted"
)

var errInvalidTransition = apperr.New(apperr.KindConflict, apperr.CodeInvalidTransition,
	"A cancelled booking cannot be reactivated.")

// BookingService is the booking guard. It keeps tours.booked_seats equal to
// the participants of all non-cancelled bookings and never above the
// tour's group size.
type BookingService struct {
	tx       TxRunner
	tours    TourStore
	bookings BookingStore
	events   EventPublisher
	metrics  metrics.Recorder
}

func NewBookingService(tx TxRunner, tours TourStore, bookings BookingStore, events EventPublisher, rec metrics.Recorder) *BookingService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &BookingService{tx: tx, tours: tours, bookings: bookings, events: events, metrics: rec}
}

// CreateBooking books participants seats on tourID for actor. In one
// transaction it rejects a second booking for the same (user, tour),
// reserves the seats with a single conditional increment and inserts the
// booking, so concurrent requests cannot overbook a tour.
func (s *BookingService) CreateBooking(ctx context.Context, actor model.User, tourID uint64, participants int) (model.Booking, error) {
	if participants == 0 {
		participants = 1
	}
	if participants < 1 {
		return model.Booking{}, apperr.Validation("A booking needs at least one participant.")
	}
	if _, err := s.tours.GetByID(ctx, tourID); err != nil {
		return model.Booking{}, notFoundOr(err, "tour")
	}

	b := model.Booking{UserID: actor.ID, TourID: tourID, Participants: participants, Status: model.BookingPending}
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		exists, err := s.bookings.ExistsTx(ctx, tx, actor.ID, tourID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrDuplicateBooking
		}
		if err := s.tours.ReserveSeatsTx(ctx, tx, tourID, participants); err != nil {
			if errors.Is(err, repository.ErrCapacity) {
				return apperr.ErrCapacityExceeded
			}
			return err
		}
		if err := s.bookings.CreateTx(ctx, tx, &b); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrDuplicateBooking
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, apperr.ErrDuplicateBooking):
		s.metrics.RecordBooking(metrics.BookingDuplicate)
		logger.Warn("duplicate booking rejected", zap.Uint64("user_id", actor.ID), zap.Uint64("tour_id", tourID))
		return model.Booking{}, err
	case errors.Is(err, apperr.ErrCapacityExceeded):
		s.metrics.RecordBooking(metrics.BookingCapacity)
		logger.Warn("booking over capacity rejected", zap.Uint64("user_id", actor.ID),
			zap.Uint64("tour_id", tourID), zap.Int("participants", participants))
		return model.Booking{}, err
	case err != nil:
		return model.Booking{}, apperr.Internal(err)
	}
	s.metrics.RecordBooking(metrics.BookingCreated)
	s.publish(ctx, BookingEventCreated, b)
	return b, nil
}

// GetBooking fetches a booking.
func (s *BookingService) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, notFoundOr(err, "booking")
	}
	return b, nil
}

// ListBookings returns bookings, for one tour when tourID is not zero.
func (s *BookingService) ListBookings(ctx context.Context, tourID uint64, p Page) ([]model.Booking, error) {
	limit, offset := p.bounds()
	out, err := s.bookings.List(ctx, tourID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// UpdateBookingStatus moves a booking between pending and confirmed, or
// cancels it. Cancelling releases its seats; a cancelled booking is final.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, id uint64, status string) (model.Booking, error) {
	if !model.ValidBookingStatus(status) {
		return model.Booking{}, apperr.Validation("Status is either: pending, confirmed, cancelled.")
	}
	var out model.Booking
	changed := false
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out = b
		if b.Status == status {
			return nil
		}
		if !b.HoldsSeats() {
			return errInvalidTransition
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, id, status); err != nil {
			return err
		}
		if status == model.BookingCancelled {
			if err := s.tours.ReleaseSeatsTx(ctx, tx, b.TourID, b.Participants); err != nil {
				return err
			}
		}
		out.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return model.Booking{}, bookingErr(err)
	}
	if !changed {
		return out, nil
	}
	kind := BookingEventUpdated
	if status == model.BookingCancelled {
		kind = BookingEventCancelled
	}
	s.publish(ctx, kind, out)
	return out, nil
}

// DeleteBooking removes a booking and releases its seats unless it was
// already cancelled.
func (s *BookingService) DeleteBooking(ctx context.Context, id uint64) error {
	var deleted model.Booking
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.bookings.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		if b.HoldsSeats() {
			if err := s.tours.ReleaseSeatsTx(ctx, tx, b.TourID, b.Participants); err != nil {
				return err
			}
		}
		deleted = b
		return nil
	})
	if err != nil {
		return bookingErr(err)
	}
	s.publish(ctx, BookingEventDeleted, deleted)
	return nil
}

func (s *BookingService) publish(ctx context.Context, kind string, b model.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingEvent(ctx, kind, b); err != nil {
		logger.Warn("booking event not published", zap.String("kind", kind),
			zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
}

func bookingErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("booking")
	}
	return apperr.As(err)
}
