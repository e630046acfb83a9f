package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
)

// RequestID tags every request with an X-Request-Id (a UUID unless the
// client sent one).
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// RequestLogger logs one line per request and reports it to rec. Routes are
// labelled by their pattern so ids do not blow up metric cardinality.
func RequestLogger(rec metrics.Recorder) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			rec.RecordRequest(v.Method, route, v.Status, v.Latency)

			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
				zap.String("user_id", userID(c)),
			}
			switch {
			case v.Status >= 500:
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}
				logger.Error("request", fields...)
			case v.Status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		},
	})
}
