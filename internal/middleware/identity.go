package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// Context keys set by Protect.
const (
	userKey   = "user"
	userIDKey = "user_id"
)

// CurrentUser returns the identity Protect attached to c, or nil on an
// unprotected route.
func CurrentUser(c echo.Context) *model.User {
	if u, ok := c.Get(userKey).(*model.User); ok {
		return u
	}
	return nil
}

func setUser(c echo.Context, u *model.User) {
	c.Set(userKey, u)
	c.Set(userIDKey, strconv.FormatUint(u.ID, 10))
}

// userID returns the authenticated user id as a string, or "guest".
func userID(c echo.Context) string {
	if v, ok := c.Get(userIDKey).(string); ok && v != "" {
		return v
	}
	return "guest"
}
