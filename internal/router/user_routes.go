package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// registerUsers mounts the auth flows and the user endpoints under /users.
func registerUsers(api *echo.Group, g middleware.Gatekeeper, h Handlers, authLimit echo.MiddlewareFunc) {
	users := api.Group("/users")

	users.POST("/signup", h.Auth.Signup)
	users.POST("/login", h.Auth.Login, only(authLimit)...)
	users.GET("/logout", h.Auth.Logout)
	users.PATCH("/verifyEmail/:token", h.Auth.VerifyEmail)
	users.POST("/resendVerification", h.Auth.ResendVerification, only(authLimit)...)
	users.POST("/forgetPassword", h.Auth.ForgetPassword, only(authLimit)...)
	users.PATCH("/resetPassword/:token", h.Auth.ResetPassword)

	me := users.Group("", middleware.Protect(g))
	me.PATCH("/updateMyPassword", h.Auth.UpdateMyPassword)
	me.GET("/me", h.Users.GetMe)
	me.PATCH("/updateMe", h.Users.UpdateMe)
	me.DELETE("/deleteMe", h.Users.DeleteMe)

	admin := users.Group("", middleware.Protect(g), middleware.RequireRole(g, model.RoleAdmin))
	admin.GET("", h.Users.ListUsers)
	admin.GET("/:id", h.Users.GetUser)
	admin.PATCH("/:id", h.Users.UpdateUser)
	admin.DELETE("/:id", h.Users.DeleteUser)
}
