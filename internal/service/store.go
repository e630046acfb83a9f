// Package service implements the business rules of the tour API: the
// credential flows, the access control gate and the booking and review
// guards that keep tour counters consistent.
package service

import (
	"context"
	"time"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// TxRunner runs fn in a single store transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.DBTX) error) error
}

// UserStore is the subset of repository.UserRepo the services use.
type UserStore interface {
	Create(ctx context.Context, u repository.NewUser) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByResetToken(ctx context.Context, hash string, now time.Time) (model.User, error)
	GetByVerificationToken(ctx context.Context, hash string, now time.Time) (model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, email, role string) error
	SetPasswordResetToken(ctx context.Context, id uint64, hash *string, expires *time.Time) error
	SetEmailVerificationToken(ctx context.Context, id uint64, hash string, expires time.Time) error
	ConsumeVerificationToken(ctx context.Context, id uint64, hash string) error
	ConsumeResetToken(ctx context.Context, id uint64, hash, passwordHash string, changedAt time.Time) error
	UpdatePassword(ctx context.Context, id uint64, passwordHash string, changedAt time.Time) error
	Deactivate(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
}

// TourStore is the subset of repository.TourRepo the services use.
type TourStore interface {
	CreateTx(ctx context.Context, tx repository.DBTX, t *model.Tour) error
	UpdateTx(ctx context.Context, tx repository.DBTX, t *model.Tour) error
	Delete(ctx context.Context, id uint64) error
	GetByID(ctx context.Context, id uint64) (model.Tour, error)
	LockTx(ctx context.Context, tx repository.DBTX, id uint64) (model.Tour, error)
	List(ctx context.Context, q repository.TourListQuery) ([]model.Tour, error)
	Within(ctx context.Context, lat, lng, radiusMeters float64) ([]model.Tour, error)
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]model.TourDistance, error)
	Stats(ctx context.Context, minRating float64) ([]model.TourStat, error)
	MonthlyPlan(ctx context.Context, year int) ([]model.MonthPlan, error)
	ReserveSeatsTx(ctx context.Context, tx repository.DBTX, tourID uint64, n int) error
	ReleaseSeatsTx(ctx context.Context, tx repository.DBTX, tourID uint64, n int) error
	SetRatingsTx(ctx context.Context, tx repository.DBTX, tourID uint64, quantity int, average float64) error
}

// BookingStore is the subset of repository.BookingRepo the services use.
type BookingStore interface {
	ExistsTx(ctx context.Context, tx repository.DBTX, userID, tourID uint64) (bool, error)
	ActiveExistsTx(ctx context.Context, tx repository.DBTX, userID, tourID uint64) (bool, error)
	CreateTx(ctx context.Context, tx repository.DBTX, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	GetForUpdateTx(ctx context.Context, tx repository.DBTX, id uint64) (model.Booking, error)
	List(ctx context.Context, tourID uint64, limit, offset int) ([]model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx repository.DBTX, id uint64, status string) error
	DeleteTx(ctx context.Context, tx repository.DBTX, id uint64) error
}

// ReviewStore is the subset of repository.ReviewRepo the services use.
type ReviewStore interface {
	ExistsTx(ctx context.Context, tx repository.DBTX, userID, tourID uint64) (bool, error)
	CreateTx(ctx context.Context, tx repository.DBTX, rv *model.Review) error
	GetByID(ctx context.Context, id uint64) (model.Review, error)
	GetByIDTx(ctx context.Context, tx repository.DBTX, id uint64) (model.Review, error)
	List(ctx context.Context, tourID uint64, limit, offset int) ([]model.Review, error)
	UpdateTx(ctx context.Context, tx repository.DBTX, id uint64, text string, rating int) error
	DeleteTx(ctx context.Context, tx repository.DBTX, id uint64) error
	RatingStatsTx(ctx context.Context, tx repository.DBTX, tourID uint64) (model.RatingStats, error)
}

// Dispatcher delivers out-of-band notifications. An error means the
// message was not handed off and the caller must undo any state it
// persisted for it.
type Dispatcher interface {
	SendPasswordReset(ctx context.Context, user model.User, url string) error
	SendEmailVerification(ctx context.Context, user model.User, url string) error
}

// EventPublisher receives booking lifecycle events. Publishing is best
// effort; failures are logged and never fail the request.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, kind string, b model.Booking) error
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// DefaultPageLimit and MaxPageLimit bound list endpoints.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

// bounds returns LIMIT and OFFSET for p.
func (p Page) bounds() (limit, offset int) {
	limit = p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
