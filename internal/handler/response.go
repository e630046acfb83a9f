package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respond writes {"status":"success","data":{key: v}}.
func respond(c echo.Context, status int, key string, v interface{}) error {
	return c.JSON(status, echo.Map{
		"status": "success",
		"data":   echo.Map{key: v},
	})
}

// respondList adds the result count of a list endpoint.
func respondList(c echo.Context, status int, key string, v interface{}, n int) error {
	return c.JSON(status, echo.Map{
		"status":  "success",
		"results": n,
		"data":    echo.Map{key: v},
	})
}
