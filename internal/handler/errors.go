package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Status  string            `json:"status"` // "fail" for 4xx, "error" for 5xx
	Code    string            `json:"code"`
	Kind    apperr.Kind       `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDependency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorHandler is the echo.HTTPErrorHandler of the API. Typed errors keep
// their code and message; anything else is logged and reported as a bare
// internal error.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var body errorBody
	status := http.StatusInternalServerError

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body = fromHTTPError(he, c)
	} else {
		e := apperr.As(err)
		status = StatusOf(e.Kind)
		body = errorBody{Code: e.Code, Kind: e.Kind, Message: e.Message, Details: e.Details}
		if e.Kind == apperr.KindInternal || e.Kind == apperr.KindDependency {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("code", e.Code),
				zap.Error(err),
			)
		}
	}

	body.Status = "fail"
	if status >= 500 {
		body.Status = "error"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error("write error response", zap.Error(err))
	}
}

// fromHTTPError covers the errors echo raises itself: unknown routes,
// wrong methods, oversized or unparsable bodies.
func fromHTTPError(he *echo.HTTPError, c echo.Context) errorBody {
	msg := fmt.Sprint(he.Message)
	switch he.Code {
	case http.StatusNotFound:
		return errorBody{
			Code:    apperr.CodeNotFound,
			Kind:    apperr.KindNotFound,
			Message: fmt.Sprintf("Can't find %s on this server!", c.Request().URL.Path),
		}
	case http.StatusMethodNotAllowed:
		return errorBody{Code: "METHOD_NOT_ALLOWED", Kind: apperr.KindValidation, Message: msg}
	case http.StatusUnauthorized:
		return errorBody{Code: apperr.CodeUnauthenticated, Kind: apperr.KindAuthentication, Message: msg}
	case http.StatusForbidden:
		return errorBody{Code: apperr.CodeForbidden, Kind: apperr.KindAuthorization, Message: msg}
	case http.StatusTooManyRequests:
		return errorBody{Code: "RATE_LIMITED", Kind: apperr.KindValidation, Message: msg}
	}
	if he.Code >= 400 && he.Code < 500 {
		return errorBody{Code: apperr.CodeValidation, Kind: apperr.KindValidation, Message: msg}
	}
	if he.Internal != nil {
		logger.Error("request failed", zap.Int("status", he.Code), zap.Error(he.Internal))
	}
	return errorBody{Code: apperr.CodeInternal, Kind: apperr.KindInternal, Message: "Something went wrong."}
}
