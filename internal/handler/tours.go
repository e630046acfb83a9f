package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// TourAPI is the part of *service.TourService the tour endpoints use.
type TourAPI interface {
	ListTours(ctx context.Context, in service.ListToursInput) ([]model.Tour, error)
	GetTour(ctx context.Context, id uint64) (service.TourDetail, error)
	CreateTour(ctx context.Context, in service.TourInput) (model.Tour, error)
	UpdateTour(ctx context.Context, id uint64, in service.TourInput) (model.Tour, error)
	DeleteTour(ctx context.Context, id uint64) error
	TourStats(ctx context.Context) ([]model.TourStat, error)
	MonthlyPlan(ctx context.Context, year int) ([]model.MonthPlan, error)
	ToursWithin(ctx context.Context, distance float64, center, unit string) ([]model.Tour, error)
	Distances(ctx context.Context, center, unit string) ([]model.TourDistance, error)
}

type TourHandler struct {
	tours TourAPI
}

func NewTourHandler(tours TourAPI) *TourHandler {
	return &TourHandler{tours: tours}
}

// tourReq mirrors service.TourInput. Derived counters are not accepted.
type tourReq struct {
	Name          *string          `json:"name" validate:"omitempty,min=10,max=40"`
	Price         *float64         `json:"price" validate:"omitempty,gt=0"`
	PriceDiscount *float64         `json:"priceDiscount" validate:"omitempty,gte=0"`
	Duration      *int             `json:"duration" validate:"omitempty,gte=1"`
	MaxGroupSize  *int             `json:"maxGroupSize" validate:"omitempty,gte=1"`
	Difficulty    *string          `json:"difficulty" validate:"omitempty,difficulty"`
	Summary       *string          `json:"summary"`
	Description   *string          `json:"description"`
	ImageCover    *string          `json:"imageCover"`
	Images        []string         `json:"images"`
	StartDates    []time.Time      `json:"startDates"`
	SecretTour    *bool            `json:"secretTour"`
	StartLocation *model.Point     `json:"startLocation"`
	Locations     []model.Location `json:"locations"`
	Guides        []uint64         `json:"guides"`
}

func (r tourReq) input() service.TourInput {
	return service.TourInput{
		Name:          r.Name,
		Price:         r.Price,
		PriceDiscount: r.PriceDiscount,
		Duration:      r.Duration,
		MaxGroupSize:  r.MaxGroupSize,
		Difficulty:    r.Difficulty,
		Summary:       r.Summary,
		Description:   r.Description,
		ImageCover:    r.ImageCover,
		Images:        r.Images,
		StartDates:    r.StartDates,
		SecretTour:    r.SecretTour,
		StartLocation: r.StartLocation,
		Locations:     r.Locations,
		Guides:        r.Guides,
	}
}

// ListTours: GET /tours?page=&limit=&sort=&difficulty=
func (h *TourHandler) ListTours(c echo.Context) error {
	p, err := pageOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	tours, err := h.tours.ListTours(ctx, service.ListToursInput{
		Page:       p,
		Sort:       c.QueryParam("sort"),
		Difficulty: c.QueryParam("difficulty"),
	})
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "tours", tours, len(tours))
}

func (h *TourHandler) GetTour(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.tours.GetTour(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour", t)
}

func (h *TourHandler) CreateTour(c echo.Context) error {
	var req tourReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.tours.CreateTour(ctx, req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "tour", t)
}

func (h *TourHandler) UpdateTour(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req tourReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.tours.UpdateTour(ctx, id, req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tour", t)
}

func (h *TourHandler) DeleteTour(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.tours.DeleteTour(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TourHandler) TourStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.tours.TourStats(ctx)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "stats", stats)
}

// MonthlyPlan: GET /tours/month-plan/:year
func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return apperr.Validation("Please provide a valid year.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	plan, err := h.tours.MonthlyPlan(ctx, year)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "plan", plan)
}

// ToursWithin: GET /tours/tours-within/:distance/center/:latlng/unit/:unit
func (h *TourHandler) ToursWithin(c echo.Context) error {
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil {
		return apperr.Validation("Distance must be a positive number.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	tours, err := h.tours.ToursWithin(ctx, distance, c.Param("latlng"), c.Param("unit"))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "data", tours, len(tours))
}

// Distances: GET /tours/distances/:latlng/unit/:unit
func (h *TourHandler) Distances(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.tours.Distances(ctx, c.Param("latlng"), c.Param("unit"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "data", out)
}
