package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/handler"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// registerBookings mounts /bookings. Every route needs a session; users
// book, admins and lead guides manage.
func registerBookings(api *echo.Group, g middleware.Gatekeeper, h *handler.BookingHandler) {
	bookings := api.Group("/bookings", middleware.Protect(g))

	bookings.POST("", h.CreateBooking, middleware.RequireRole(g, model.RoleUser))

	manage := middleware.RequireRole(g, model.RoleAdmin, model.RoleLeadGuide)
	bookings.GET("", h.ListBookings, manage)
	bookings.GET("/:id", h.GetBooking, manage)
	bookings.PATCH("/:id", h.UpdateBooking, manage)
	bookings.DELETE("/:id", h.DeleteBooking, manage)
}

// registerReviews mounts /reviews. Reads need any session; writes are for
// users, and admins may edit or remove any review.
func registerReviews(api *echo.Group, g middleware.Gatekeeper, h *handler.ReviewHandler) {
	reviews := api.Group("/reviews", middleware.Protect(g))

	reviews.GET("", h.ListReviews)
	reviews.GET("/:id", h.GetReview)
	reviews.POST("", h.CreateReview, middleware.RequireRole(g, model.RoleUser))

	owners := middleware.RequireRole(g, model.RoleUser, model.RoleAdmin)
	reviews.PATCH("/:id", h.UpdateReview, owners)
	reviews.DELETE("/:id", h.DeleteReview, owners)
}
