package model

import "time"

// Difficulty levels accepted for a tour.
const (
    DifficultyEasy   = "easy"
    DifficultyMedium = "medium"
    DifficultyHard   = "hard"
)

// Point is a GeoJSON-style position. Coordinates are [lng, lat].
type Point struct {
    Type        string     `json:"type"`
    Coordinates [2]float64 `json:"coordinates"`
    Address     string     `json:"address,omitempty"`
    Description string     `json:"description,omitempty"`
}

// Lng returns the longitude of p.
func (p Point) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude of p.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Location is a stop on a tour itinerary.
type Location struct {
    Point
    Day int `json:"day"`
}

// Tour is a row of the `tours` table. BookedSeats, RatingsAverage and
// RatingsQuantity are derived: the booking and review services maintain them
// and they are never taken from request bodies.
type Tour struct {
    ID              uint64      `json:"id"`              // tours.id
    Name            string      `json:"name"`            // tours.name (unique)
    Slug            string      `json:"slug"`            // tours.slug
    Price           float64     `json:"price"`           // tours.price
    PriceDiscount   *float64    `json:"priceDiscount,omitempty"` // tours.price_discount (nullable)
    Duration        int         `json:"duration"`        // tours.duration in days
    MaxGroupSize    int         `json:"maxGroupSize"`    // tours.max_group_size
    Difficulty      string      `json:"difficulty"`      // tours.difficulty
    RatingsAverage  float64     `json:"ratingsAverage"`  // tours.ratings_average
    RatingsQuantity int         `json:"ratingsQuantity"` // tours.ratings_quantity
    BookedSeats     int         `json:"bookedSeats"`     // tours.booked_seats
    Summary         string      `json:"summary"`         // tours.summary
    Description     string      `json:"description,omitempty"` // tours.description
    ImageCover      string      `json:"imageCover"`      // tours.image_cover
    Images          []string    `json:"images"`          // tours.images (JSON)
    StartDates      []time.Time `json:"startDates"`      // tour_start_dates rows
    SecretTour      bool        `json:"-"`               // tours.secret_tour
    StartLocation   Point       `json:"startLocation"`   // tours.start_lat/start_lng/...
    Locations       []Location  `json:"locations"`       // tours.locations (JSON)
    Guides          []uint64    `json:"guides"`          // tours.guides (JSON user ids)
    CreatedAt       time.Time   `json:"createdAt"`       // tours.created_at
}

// DurationWeeks mirrors the virtual field exposed by the listing endpoints.
func (t Tour) DurationWeeks() float64 { return float64(t.Duration) / 7 }

// AvailableSeats is the number of participants that can still book.
func (t Tour) AvailableSeats() int {
    if n := t.MaxGroupSize - t.BookedSeats; n > 0 {
        return n
    }
    return 0
}

// TourStat is one row of the difficulty breakdown.
type TourStat struct {
    Difficulty string  `json:"difficulty"`
    NumTours   int     `json:"numTours"`
    NumRatings int     `json:"numRatings"`
    AvgRating  float64 `json:"avgRating"`
    AvgPrice   float64 `json:"avgPrice"`
    MinPrice   float64 `json:"minPrice"`
    MaxPrice   float64 `json:"maxPrice"`
}

// MonthPlan is the number of tour starts in a calendar month.
type MonthPlan struct {
    Month         int      `json:"month"`
    NumTourStarts int      `json:"numTourStarts"`
    Tours         []string `json:"tours"`
}

// TourDistance is a tour name with its distance from a reference point.
type TourDistance struct {
    ID       uint64  `json:"id"`
    Name     string  `json:"name"`
    Distance float64 `json:"distance"`
}
