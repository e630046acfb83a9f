package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// BookingAPI is the part of *service.BookingService the booking endpoints use.
type BookingAPI interface {
	CreateBooking(ctx context.Context, actor model.User, tourID uint64, participants int) (model.Booking, error)
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	ListBookings(ctx context.Context, tourID uint64, p service.Page) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status string) (model.Booking, error)
	DeleteBooking(ctx context.Context, id uint64) error
}

type BookingHandler struct {
	bookings BookingAPI
}

func NewBookingHandler(bookings BookingAPI) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type bookingReq struct {
	Tour         uint64 `json:"tour"`
	Participants int    `json:"participants" validate:"gte=0"`
}

type bookingStatusReq struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled"`
}

// nestedTourID returns the :tourId of /tours/:tourId/... routes, or
// fallback when the route is not nested.
func nestedTourID(c echo.Context, fallback uint64) (uint64, error) {
	if c.Param("tourId") == "" {
		return fallback, nil
	}
	return pathID(c, "tourId")
}

// CreateBooking: POST /bookings or POST /tours/:tourId/bookings.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	tourID, err := nestedTourID(c, req.Tour)
	if err != nil {
		return err
	}
	if tourID == 0 {
		return apperr.Validation("A booking must belong to a tour.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.bookings.CreateBooking(ctx, actor, tourID, req.Participants)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "booking", b)
}

// ListBookings: GET /bookings?tour= or GET /tours/:tourId/bookings.
func (h *BookingHandler) ListBookings(c echo.Context) error {
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

	out, err := h.bookings.ListBookings(ctx, tourID, p)
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "bookings", out, len(out))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.bookings.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "booking", b)
}

// UpdateBooking changes the status only; participants and owner are fixed.
func (h *BookingHandler) UpdateBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req bookingStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.bookings.UpdateBookingStatus(ctx, id, req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "booking", b)
}

func (h *BookingHandler) DeleteBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.bookings.DeleteBooking(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
