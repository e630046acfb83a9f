package repository

import (
	"context"
	"database/sql"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

const bookingColumns = "id, user_id, tour_id, participants, status, created_at"

// BookingRepo provides access to the bookings table. Seat accounting on the
// tours table is done by TourRepo within the same transaction.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	err := s.Scan(&b.ID, &b.UserID, &b.TourID, &b.Participants, &b.Status, &b.CreatedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	return b, err
}

// ExistsTx reports whether userID already holds a booking for tourID, in
// any status.
func (r *BookingRepo) ExistsTx(ctx context.Context, tx DBTX, userID, tourID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE user_id = ? AND tour_id = ?", userID, tourID).Scan(&n)
	return n > 0, err
}

// ActiveExistsTx reports whether userID holds a booking for tourID that
// has not been cancelled.
func (r *BookingRepo) ActiveExistsTx(ctx context.Context, tx DBTX, userID, tourID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE user_id = ? AND tour_id = ? AND status <> ?",
		userID, tourID, model.BookingCancelled).Scan(&n)
	return n > 0, err
}

// CreateTx inserts b and fills its ID and creation time. ErrDuplicate is
// the UNIQUE(user_id, tour_id) backstop for a concurrent duplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx DBTX, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO bookings (user_id, tour_id, participants, status) VALUES (?,?,?,?)",
		b.UserID, b.TourID, b.Participants, b.Status)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	if err != nil {
		return err
	}
	*b = created
	return nil
}

// GetByID fetches a booking.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.DB.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	return b, mapErr(err)
}

// GetForUpdateTx fetches a booking and locks its row until tx ends.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx DBTX, id uint64) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
	return b, mapErr(err)
}

// List returns bookings newest first, optionally restricted to one tour.
func (r *BookingRepo) List(ctx context.Context, tourID uint64, limit, offset int) ([]model.Booking, error) {
	q := "SELECT " + bookingColumns + " FROM bookings"
	args := []interface{}{}
	if tourID != 0 {
		q += " WHERE tour_id = ?"
		args = append(args, tourID)
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatusTx sets the status of a booking.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx DBTX, id uint64, status string) error {
	return expectOne(tx.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, id))
}

// DeleteTx removes a booking.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx DBTX, id uint64) error {
	return expectOne(tx.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id))
}
