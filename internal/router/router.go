// Package router registers the HTTP routes of the API on an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/handler"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
)

// Handlers bundles everything the route table points at.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Tours    *handler.TourHandler
	Bookings *handler.BookingHandler
	Reviews  *handler.ReviewHandler
}

// Limits are the rate limiters in front of the API. Nil skips a limiter.
type Limits struct {
	API  echo.MiddlewareFunc // every /api request
	Auth echo.MiddlewareFunc // login and forgetPassword
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAPI registers every /api/v1 route. Protected routes pass through
// middleware.Protect first, then a role check where one applies.
func RegisterAPI(e *echo.Echo, g middleware.Gatekeeper, h Handlers, lim Limits) *echo.Group {
	var mws []echo.MiddlewareFunc
	if lim.API != nil {
		mws = append(mws, lim.API)
	}
	api := e.Group("/api/v1", mws...)

	registerUsers(api, g, h, lim.Auth)
	registerTours(api, g, h)
	registerReviews(api, g, h.Reviews)
	registerBookings(api, g, h.Bookings)
	return api
}

func only(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
