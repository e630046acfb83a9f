package middleware

import (
	"github.com/labstack/echo/v4"
)

// RequireRole admits only identities holding one of roles. It must run
// after Protect; without an identity the request fails authentication, not
// authorization.
func RequireRole(g Gatekeeper, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.Authorize(CurrentUser(c), roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
