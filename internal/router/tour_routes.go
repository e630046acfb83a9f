package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// registerTours mounts the public tour reads, the staff-only writes, and
// the reviews and bookings nested under a tour.
func registerTours(api *echo.Group, g middleware.Gatekeeper, h Handlers) {
	tours := api.Group("/tours")
	protect := middleware.Protect(g)

	tours.GET("", h.Tours.ListTours)
	tours.GET("/tour-stats", h.Tours.TourStats)
	tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", h.Tours.ToursWithin)
	tours.GET("/distances/:latlng/unit/:unit", h.Tours.Distances)
	tours.GET("/:id", h.Tours.GetTour)

	tours.GET("/month-plan/:year", h.Tours.MonthlyPlan,
		protect, middleware.RequireRole(g, model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))

	staff := []echo.MiddlewareFunc{protect, middleware.RequireRole(g, model.RoleAdmin, model.RoleLeadGuide)}
	tours.POST("", h.Tours.CreateTour, staff...)
	tours.PATCH("/:id", h.Tours.UpdateTour, staff...)
	tours.DELETE("/:id", h.Tours.DeleteTour, staff...)

	tours.GET("/:tourId/reviews", h.Reviews.ListReviews, protect)
	tours.POST("/:tourId/reviews", h.Reviews.CreateReview, protect, middleware.RequireRole(g, model.RoleUser))
	tours.GET("/:tourId/bookings", h.Bookings.ListBookings, staff...)
	tours.POST("/:tourId/bookings", h.Bookings.CreateBooking, protect, middleware.RequireRole(g, model.RoleUser))
}
