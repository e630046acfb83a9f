// Package middleware holds the echo middleware of the API: session
// authentication, role checks, rate limiting, request logging and metrics.
package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// SessionCookie is the cookie that carries the session token for browsers.
const SessionCookie = "jwt"

// Gatekeeper authenticates bearer tokens and checks roles. *service.Gate
// implements it.
type Gatekeeper interface {
	Authenticate(ctx context.Context, bearer string) (model.User, error)
	Authorize(u *model.User, roles ...string) error
}

// Protect resolves the session token of each request into a user. The token
// comes from an "Authorization: Bearer" header, or from the jwt cookie when
// the header is absent. Failures are returned as errors so the shared error
// handler renders them.
func Protect(g Gatekeeper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := g.Authenticate(c.Request().Context(), bearerToken(c))
			if err != nil {
				return err
			}
			setUser(c, &u)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "loggedout" {
		return ck.Value
	}
	return ""
}
