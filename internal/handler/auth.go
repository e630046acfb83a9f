package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/credential"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// AuthAPI is the part of *service.AuthService the auth endpoints use.
type AuthAPI interface {
	Signup(ctx context.Context, in service.SignupInput) (model.User, error)
	VerifyEmail(ctx context.Context, raw string) error
	Login(ctx context.Context, email, password string) (model.User, credential.SessionToken, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, raw, password, confirm string) (model.User, credential.SessionToken, error)
	UpdatePassword(ctx context.Context, actor model.User, current, password, confirm string) (model.User, credential.SessionToken, error)
}

// CookieConfig controls the session cookie set on login.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// AuthHandler serves signup, login and the password flows.
type AuthHandler struct {
	auth   AuthAPI
	cookie CookieConfig
}

func NewAuthHandler(auth AuthAPI, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

// ----- DTOs -----

type signupReq struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
	Role            string `json:"role" validate:"omitempty,role"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type updatePasswordReq struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// Signup: create an unverified user and send the verification email.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.auth.Signup(ctx, service.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":  "success",
		"message": "Verification email sent! Please check your inbox.",
		"data":    echo.Map{"user": u},
	})
}

// VerifyEmail consumes the token from the emailed link.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.VerifyEmail(ctx, c.Param("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "Email verified! You can log in now.",
	})
}

// Login: check credentials, set the session cookie and return the token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, tok, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, u, tok)
}

// Logout replaces the session cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// ResendVerification emails a fresh verification link to an unverified
// account.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.ResendVerification(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "Verification email sent! Please check your inbox.",
	})
}

// ForgetPassword emails a reset link.
func (h *AuthHandler) ForgetPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

// ResetPassword sets a new password from a reset link and logs the user in.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, tok, err := h.auth.ResetPassword(ctx, c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, u, tok)
}

// UpdateMyPassword changes the caller's password and returns a new session.
func (h *AuthHandler) UpdateMyPassword(c echo.Context) error {
	actor := middleware.CurrentUser(c)
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	var req updatePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, tok, err := h.auth.UpdatePassword(ctx, *actor, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, u, tok)
}

func (h *AuthHandler) sendSession(c echo.Context, status int, u model.User, tok credential.SessionToken) error {
	exp := tok.Exp
	if h.cookie.TTL > 0 {
		exp = time.Now().Add(h.cookie.TTL)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, echo.Map{
		"status": "success",
		"token":  tok.Token,
		"data":   echo.Map{"user": u},
	})
}
