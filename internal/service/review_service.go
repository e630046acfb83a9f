package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// ReviewService is the review guard. Every successful create, update and
// delete recomputes the parent tour's rating aggregate from scratch inside
// the same transaction, with the tour row locked so concurrent review
// writers on one tour are serialized.
type ReviewService struct {
	tx       TxRunner
	tours    TourStore
	bookings BookingStore
	reviews  ReviewStore
	metrics  metrics.Recorder
}

func NewReviewService(tx TxRunner, tours TourStore, bookings BookingStore, reviews ReviewStore, rec metrics.Recorder) *ReviewService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ReviewService{tx: tx, tours: tours, bookings: bookings, reviews: reviews, metrics: rec}
}

// ReviewInput holds review fields; nil leaves a field unchanged on update.
type ReviewInput struct {
	Review *string
	Rating *int
}

func checkReview(text string, rating int) error {
	details := map[string]string{}
	if strings.TrimSpace(text) == "" {
		details["review"] = "You must write a review!"
	}
	if rating < model.MinRating || rating > model.MaxRating {
		details["rating"] = "Rating must be between 1 and 5"
	}
	if len(details) > 0 {
		return apperr.Validation("Invalid review data.").WithDetails(details)
	}
	return nil
}

// CreateReview adds actor's review of tourID. Base users must hold a
// booking for the tour; privileged roles skip that check. A second review
// of the same tour by the same user is rejected.
func (s *ReviewService) CreateReview(ctx context.Context, actor model.User, tourID uint64, in ReviewInput) (model.Review, error) {
	var text string
	var rating int
	if in.Review != nil {
		text = *in.Review
	}
	if in.Rating != nil {
		rating = *in.Rating
	}
	if err := checkReview(text, rating); err != nil {
		return model.Review{}, err
	}
	if _, err := s.tours.GetByID(ctx, tourID); err != nil {
		return model.Review{}, notFoundOr(err, "tour")
	}

	rv := model.Review{Review: text, Rating: rating, TourID: tourID, UserID: actor.ID}
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		if _, err := s.tours.LockTx(ctx, tx, tourID); err != nil {
			return err
		}
		exists, err := s.reviews.ExistsTx(ctx, tx, actor.ID, tourID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrDuplicateReview
		}
		if actor.Role == model.RoleUser {
			booked, err := s.bookings.ActiveExistsTx(ctx, tx, actor.ID, tourID)
			if err != nil {
				return err
			}
			if !booked {
				return apperr.ErrBookingRequired
			}
		}
		if err := s.reviews.CreateTx(ctx, tx, &rv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrDuplicateReview
			}
			return err
		}
		return s.recomputeRatings(ctx, tx, tourID)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrBookingRequired) || errors.Is(err, apperr.ErrDuplicateReview) {
			logger.Warn("review rejected", zap.Uint64("user_id", actor.ID), zap.Uint64("tour_id", tourID), zap.Error(err))
		}
		return model.Review{}, reviewErr(err, "tour")
	}
	s.metrics.RecordReviewMutation(metrics.ReviewCreate)
	return rv, nil
}

// UpdateReview changes a review's text or rating. A base user may only
// change their own review.
func (s *ReviewService) UpdateReview(ctx context.Context, actor model.User, id uint64, in ReviewInput) (model.Review, error) {
	var out model.Review
	err := s.mutate(ctx, actor, id, func(ctx context.Context, tx repository.DBTX, rv model.Review) error {
		if in.Review != nil {
			rv.Review = strings.TrimSpace(*in.Review)
		}
		if in.Rating != nil {
			rv.Rating = *in.Rating
		}
		if err := checkReview(rv.Review, rv.Rating); err != nil {
			return err
		}
		if err := s.reviews.UpdateTx(ctx, tx, id, rv.Review, rv.Rating); err != nil {
			return err
		}
		out = rv
		return nil
	})
	if err != nil {
		return model.Review{}, err
	}
	s.metrics.RecordReviewMutation(metrics.ReviewUpdate)
	return out, nil
}

// DeleteReview removes a review. A base user may only delete their own.
func (s *ReviewService) DeleteReview(ctx context.Context, actor model.User, id uint64) error {
	err := s.mutate(ctx, actor, id, func(ctx context.Context, tx repository.DBTX, rv model.Review) error {
		return s.reviews.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.metrics.RecordReviewMutation(metrics.ReviewDelete)
	return nil
}

// mutate runs change on review id and recomputes the ratings of its tour.
// The tour id is captured before change runs, since a deleted review can
// no longer be asked for it.
func (s *ReviewService) mutate(ctx context.Context, actor model.User, id uint64,
	change func(ctx context.Context, tx repository.DBTX, rv model.Review) error) error {
	existing, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "review")
	}
	tourID := existing.TourID
	err = s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		if _, err := s.tours.LockTx(ctx, tx, tourID); err != nil {
			return err
		}
		rv, err := s.reviews.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if actor.Role == model.RoleUser && rv.UserID != actor.ID {
			return apperr.ErrForbidden
		}
		if err := change(ctx, tx, rv); err != nil {
			return err
		}
		return s.recomputeRatings(ctx, tx, tourID)
	})
	return reviewErr(err, "review")
}

// recomputeRatings rebuilds the tour's rating aggregate from its live
// reviews. No reviews resets it to zero.
func (s *ReviewService) recomputeRatings(ctx context.Context, tx repository.DBTX, tourID uint64) error {
	stats, err := s.reviews.RatingStatsTx(ctx, tx, tourID)
	if err != nil {
		return err
	}
	avg := 0.0
	if stats.Quantity > 0 {
		avg = roundRating(stats.Average)
	}
	return s.tours.SetRatingsTx(ctx, tx, tourID, stats.Quantity, avg)
}

// GetReview fetches a review.
func (s *ReviewService) GetReview(ctx context.Context, id uint64) (model.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return model.Review{}, notFoundOr(err, "review")
	}
	return rv, nil
}

// ListReviews returns reviews, for one tour when tourID is not zero.
func (s *ReviewService) ListReviews(ctx context.Context, tourID uint64, p Page) ([]model.Review, error) {
	limit, offset := p.bounds()
	out, err := s.reviews.List(ctx, tourID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func reviewErr(err error, missing string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(missing)
	}
	return apperr.As(err)
}
