package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// Tour name bounds.
const (
	MinTourNameLength = 10
	MaxTourNameLength = 40
)

// TopRatedThreshold is the minimum average rating counted by TourStats.
const TopRatedThreshold = 4.5

// Distance units and their conversions. Radii are in meters, distance
// multipliers convert meters to the unit.
const (
	UnitMiles      = "mi"
	UnitKilometers = "km"

	metersPerMile      = 1609.344
	metersPerKilometer = 1000.0
	milesPerMeter      = 0.000621371
	kilometersPerMeter = 0.001
)

// TourService manages tours and answers the geo and reporting queries.
type TourService struct {
	tx      TxRunner
	tours   TourStore
	reviews ReviewStore
}

func NewTourService(tx TxRunner, tours TourStore, reviews ReviewStore) *TourService {
	return &TourService{tx: tx, tours: tours, reviews: reviews}
}

// TourInput carries the caller-writable fields of a tour. Nil or empty
// values leave the field unchanged on update. Derived counters are absent
// on purpose: callers never set them.
type TourInput struct {
	Name          *string
	Price         *float64
	PriceDiscount *float64
	Duration      *int
	MaxGroupSize  *int
	Difficulty    *string
	Summary       *string
	Description   *string
	ImageCover    *string
	Images        []string
	StartDates    []time.Time
	SecretTour    *bool
	StartLocation *model.Point
	Locations     []model.Location
	Guides        []uint64
}

func (in TourInput) apply(t *model.Tour) {
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		t.Price = *in.Price
	}
	if in.PriceDiscount != nil {
		d := *in.PriceDiscount
		t.PriceDiscount = &d
	}
	if in.Duration != nil {
		t.Duration = *in.Duration
	}
	if in.MaxGroupSize != nil {
		t.MaxGroupSize = *in.MaxGroupSize
	}
	if in.Difficulty != nil {
		t.Difficulty = *in.Difficulty
	}
	if in.Summary != nil {
		t.Summary = strings.TrimSpace(*in.Summary)
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.ImageCover != nil {
		t.ImageCover = *in.ImageCover
	}
	if in.Images != nil {
		t.Images = in.Images
	}
	if in.StartDates != nil {
		t.StartDates = in.StartDates
	}
	if in.SecretTour != nil {
		t.SecretTour = *in.SecretTour
	}
	if in.StartLocation != nil {
		p := *in.StartLocation
		p.Type = "Point"
		t.StartLocation = p
	}
	if in.Locations != nil {
		locs := make([]model.Location, len(in.Locations))
		for i, l := range in.Locations {
			l.Type = "Point"
			locs[i] = l
		}
		t.Locations = locs
	}
	if in.Guides != nil {
		t.Guides = in.Guides
	}
	t.Slug = Slugify(t.Name)
}

// validateTour checks the invariants a stored tour must satisfy.
func validateTour(t model.Tour) error {
	details := map[string]string{}
	if n := len([]rune(t.Name)); n < MinTourNameLength || n > MaxTourNameLength {
		details["name"] = "A tour name must have between 10 and 40 characters"
	}
	if t.Price <= 0 {
		details["price"] = "A tour must have a price"
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		details["priceDiscount"] = "Discount should be less than the original price"
	}
	if t.Duration < 1 {
		details["duration"] = "A tour must have a duration"
	}
	if t.MaxGroupSize < 1 {
		details["maxGroupSize"] = "A tour must have a group size"
	}
	switch t.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		details["difficulty"] = "Difficulty is either: easy, medium, hard"
	}
	if t.Summary == "" {
		details["summary"] = "A tour must have a summary"
	}
	if t.ImageCover == "" {
		details["imageCover"] = "A tour must have a cover image"
	}
	if t.StartLocation.Type != "" {
		if err := checkCoordinates(t.StartLocation.Lat(), t.StartLocation.Lng()); err != nil {
			details["startLocation"] = "Coordinates must be [lng, lat] within range"
		}
	}
	if len(details) > 0 {
		return apperr.Validation("Invalid tour data.").WithDetails(details)
	}
	return nil
}

// CreateTour stores a new tour with zeroed derived counters.
func (s *TourService) CreateTour(ctx context.Context, in TourInput) (model.Tour, error) {
	var t model.Tour
	in.apply(&t)
	if err := validateTour(t); err != nil {
		return model.Tour{}, err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		return s.tours.CreateTx(ctx, tx, &t)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.Tour{}, apperr.ErrNameTaken
	}
	if err != nil {
		return model.Tour{}, apperr.Internal(err)
	}
	return t, nil
}

// UpdateTour patches a public tour. The group size cannot drop below the
// seats already booked.
func (s *TourService) UpdateTour(ctx context.Context, id uint64, in TourInput) (model.Tour, error) {
	if _, err := s.tours.GetByID(ctx, id); err != nil {
		return model.Tour{}, notFoundOr(err, "tour")
	}
	var out model.Tour
	err := s.tx.InTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		t, err := s.tours.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		in.apply(&t)
		if err := validateTour(t); err != nil {
			return err
		}
		if t.MaxGroupSize < t.BookedSeats {
			return apperr.Validation("maxGroupSize cannot be lower than the seats already booked.").
				WithDetails(map[string]string{"maxGroupSize": strconv.Itoa(t.BookedSeats)})
		}
		if err := s.tours.UpdateTx(ctx, tx, &t); err != nil {
			return err
		}
		out = t
		return nil
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, repository.ErrDuplicate):
		return model.Tour{}, apperr.ErrNameTaken
	case errors.Is(err, repository.ErrNotFound):
		return model.Tour{}, apperr.NotFound("tour")
	}
	return model.Tour{}, apperr.As(err)
}

// DeleteTour removes a tour with its bookings and reviews.
func (s *TourService) DeleteTour(ctx context.Context, id uint64) error {
	if err := s.tours.Delete(ctx, id); err != nil {
		return notFoundOr(err, "tour")
	}
	return nil
}

// TourDetail is a tour with its reviews.
type TourDetail struct {
	model.Tour
	DurationWeeks float64        `json:"durationWeeks"`
	Reviews       []model.Review `json:"reviews"`
}

// GetTour returns a public tour and its reviews.
func (s *TourService) GetTour(ctx context.Context, id uint64) (TourDetail, error) {
	t, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return TourDetail{}, notFoundOr(err, "tour")
	}
	reviews, err := s.reviews.List(ctx, id, MaxPageLimit, 0)
	if err != nil {
		return TourDetail{}, apperr.Internal(err)
	}
	return TourDetail{Tour: t, DurationWeeks: t.DurationWeeks(), Reviews: reviews}, nil
}

// ListToursInput pages, sorts and filters the public listing.
type ListToursInput struct {
	Page
	Sort       string
	Difficulty string
}

// ListTours returns one page of public tours. Secret tours never appear.
func (s *TourService) ListTours(ctx context.Context, in ListToursInput) ([]model.Tour, error) {
	limit, offset := in.bounds()
	tours, err := s.tours.List(ctx, repository.TourListQuery{
		Limit: limit, Offset: offset, Sort: in.Sort, Difficulty: in.Difficulty,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tours, nil
}

// TourStats groups top rated tours by difficulty.
func (s *TourService) TourStats(ctx context.Context) ([]model.TourStat, error) {
	stats, err := s.tours.Stats(ctx, TopRatedThreshold)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for i := range stats {
		stats[i].AvgRating = roundRating(stats[i].AvgRating)
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]model.MonthPlan, error) {
	if year < 1970 || year > 9999 {
		return nil, apperr.Validation("Please provide a valid year.")
	}
	plan, err := s.tours.MonthlyPlan(ctx, year)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return plan, nil
}

// ToursWithin finds tours starting within distance of center ("lat,lng")
// measured in unit.
func (s *TourService) ToursWithin(ctx context.Context, distance float64, center, unit string) ([]model.Tour, error) {
	lat, lng, err := ParseLatLng(center)
	if err != nil {
		return nil, err
	}
	if distance <= 0 || math.IsInf(distance, 0) || math.IsNaN(distance) {
		return nil, apperr.Validation("Distance must be a positive number.")
	}
	var radius float64
	switch unit {
	case UnitMiles:
		radius = distance * metersPerMile
	case UnitKilometers:
		radius = distance * metersPerKilometer
	default:
		return nil, errUnit
	}
	tours, err := s.tours.Within(ctx, lat, lng, radius)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tours, nil
}

// Distances returns the distance from center to every tour start in unit.
func (s *TourService) Distances(ctx context.Context, center, unit string) ([]model.TourDistance, error) {
	lat, lng, err := ParseLatLng(center)
	if err != nil {
		return nil, err
	}
	var mult float64
	switch unit {
	case UnitMiles:
		mult = milesPerMeter
	case UnitKilometers:
		mult = kilometersPerMeter
	default:
		return nil, errUnit
	}
	out, err := s.tours.Distances(ctx, lat, lng, mult)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

var errUnit = apperr.Validation("Unit must be either mi or km.")

var errLatLng = apperr.Validation("Please provide latitude and longitude in the format lat,lng.")

// ParseLatLng parses "lat,lng" and checks both are in range.
func ParseLatLng(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errLatLng
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, errLatLng
	}
	if err := checkCoordinates(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func checkCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errLatLng
	}
	return nil
}

// Slugify transliterates name to ASCII, lower-cases it and joins its words
// with '-'.
func Slugify(name string) string { return slug.Make(name) }

// roundRating rounds to one decimal place.
func roundRating(v float64) float64 { return math.Round(v*10) / 10 }
