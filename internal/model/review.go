package model

import "time"

// Review rating bounds.
const (
    MinRating = 1
    MaxRating = 5
)

// Review is a row of the `reviews` table. At most one exists per
// (UserID, TourID). UserName is filled by joins for display.
type Review struct {
    ID        uint64    `json:"id"`                 // reviews.id
    Review    string    `json:"review"`             // reviews.review
    Rating    int       `json:"rating"`             // reviews.rating
    TourID    uint64    `json:"tour"`               // reviews.tour_id
    UserID    uint64    `json:"user"`               // reviews.user_id
    UserName  string    `json:"userName,omitempty"` // users.name
    CreatedAt time.Time `json:"createdAt"`          // reviews.created_at
}

// RatingStats is the live aggregate of a tour's reviews.
type RatingStats struct {
    Quantity int
    Average  float64
}
