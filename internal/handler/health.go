package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is the health-check endpoint used by load balancers and
// monitoring. It reports 503 while the database does not answer.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.Warn("health: database unreachable", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "db": "down"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "db": "up"})
	}
}
