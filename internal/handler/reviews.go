package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// ReviewAPI is the part of *service.ReviewService the review endpoints use.
type ReviewAPI interface {
	CreateReview(ctx context.Context, actor model.User, tourID uint64, in service.ReviewInput) (model.Review, error)
	UpdateReview(ctx context.Context, actor model.User, id uint64, in service.ReviewInput) (model.Review, error)
	DeleteReview(ctx context.Context, actor model.User, id uint64) error
	GetReview(ctx context.Context, id uint64) (model.Review, error)
	ListReviews(ctx context.Context, tourID uint64, p service.Page) ([]model.Review, error)
}

type ReviewHandler struct {
	reviews ReviewAPI
}

func NewReviewHandler(reviews ReviewAPI) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type reviewReq struct {
	Review *string `json:"review"`
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Tour   uint64  `json:"tour"`
}

// CreateReview: POST /reviews or POST /tours/:tourId/reviews.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tourID, err := nestedTourID(c, req.Tour)
	if err != nil {
		return err
	}
	if tourID == 0 {
		return apperr.Validation("Review must belong to a tour.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rv, err := h.reviews.CreateReview(ctx, actor, tourID, service.ReviewInput{Review: req.Review, Rating: req.Rating})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "review", rv)
}

// ListReviews: GET /reviews?tour= or GET /tours/:tourId/reviews.
func (h *ReviewHandler) ListReviews(c echo.Context) error {
	p, err := pageOf(c)
	if err != nil {
		return err
	}
	var tourID uint64
	if err := echo.QueryParamsBinder(c).Uint64("tour", &tourID).BindError(); err != nil {
		return apperr.Validation("tour must be an id.")
	}
	if tourID, err = nestedTourID(c, tourID); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.reviews.ListReviews(ctx, tourID, p)
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "reviews", out, len(out))
}

func (h *ReviewHandler) GetReview(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rv, err := h.reviews.GetReview(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review", rv)
}

func (h *ReviewHandler) UpdateReview(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rv, err := h.reviews.UpdateReview(ctx, actor, id, service.ReviewInput{Review: req.Review, Rating: req.Rating})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review", rv)
}

func (h *ReviewHandler) DeleteReview(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.reviews.DeleteReview(ctx, actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
