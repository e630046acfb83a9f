package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// reviewSelect joins the author's name for display. Reviews by deactivated
// users are still returned; they keep counting toward the tour rating.
const reviewSelect = `SELECT r.id, r.review, r.rating, r.tour_id, r.user_id, COALESCE(u.name, ''), r.created_at
	FROM reviews r LEFT JOIN users u ON u.id = r.user_id`

// ReviewRepo provides access to the reviews table.
type ReviewRepo struct{ DB *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

func scanReview(s rowScanner) (model.Review, error) {
	var rv model.Review
	err := s.Scan(&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID, &rv.UserName, &rv.CreatedAt)
	rv.CreatedAt = rv.CreatedAt.UTC()
	return rv, err
}

// ExistsTx reports whether userID already reviewed tourID.
func (r *ReviewRepo) ExistsTx(ctx context.Context, tx DBTX, userID, tourID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reviews WHERE user_id = ? AND tour_id = ?", userID, tourID).Scan(&n)
	return n > 0, err
}

// CreateTx inserts rv and fills its ID and creation time.
func (r *ReviewRepo) CreateTx(ctx context.Context, tx DBTX, rv *model.Review) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reviews (review, rating, tour_id, user_id) VALUES (?,?,?,?)",
		strings.TrimSpace(rv.Review), rv.Rating, rv.TourID, rv.UserID)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.getByID(ctx, tx, uint64(id))
	if err != nil {
		return err
	}
	*rv = created
	return nil
}

// GetByID fetches a review.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (model.Review, error) {
	return r.getByID(ctx, r.DB, id)
}

// GetByIDTx fetches a review inside tx.
func (r *ReviewRepo) GetByIDTx(ctx context.Context, tx DBTX, id uint64) (model.Review, error) {
	return r.getByID(ctx, tx, id)
}

func (r *ReviewRepo) getByID(ctx context.Context, q DBTX, id uint64) (model.Review, error) {
	rv, err := scanReview(q.QueryRowContext(ctx, reviewSelect+" WHERE r.id = ?", id))
	return rv, mapErr(err)
}

// List returns reviews newest first, optionally restricted to one tour.
func (r *ReviewRepo) List(ctx context.Context, tourID uint64, limit, offset int) ([]model.Review, error) {
	q := reviewSelect
	args := []interface{}{}
	if tourID != 0 {
		q += " WHERE r.tour_id = ?"
		args = append(args, tourID)
	}
	q += " ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// UpdateTx changes text and rating of a review.
func (r *ReviewRepo) UpdateTx(ctx context.Context, tx DBTX, id uint64, text string, rating int) error {
	return expectOne(tx.ExecContext(ctx,
		"UPDATE reviews SET review = ?, rating = ? WHERE id = ?", strings.TrimSpace(text), rating, id))
}

// DeleteTx removes a review.
func (r *ReviewRepo) DeleteTx(ctx context.Context, tx DBTX, id uint64) error {
	return expectOne(tx.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id))
}

// RatingStatsTx computes count and mean rating over the live reviews of
// tourID. No reviews yields a zero value.
func (r *ReviewRepo) RatingStatsTx(ctx context.Context, tx DBTX, tourID uint64) (model.RatingStats, error) {
	var s model.RatingStats
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM reviews WHERE tour_id = ?", tourID).
		Scan(&s.Quantity, &s.Average)
	return s, err
}
