package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/middleware"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// UserAPI is the part of *service.UserService the user endpoints use.
type UserAPI interface {
	GetMe(ctx context.Context, actor model.User) (model.User, error)
	UpdateMe(ctx context.Context, actor model.User, in service.ProfileInput) (model.User, error)
	DeleteMe(ctx context.Context, actor model.User) error
	ListUsers(ctx context.Context, p service.Page) ([]model.User, error)
	GetUser(ctx context.Context, id uint64) (model.User, error)
	UpdateUser(ctx context.Context, id uint64, in service.ProfileInput) (model.User, error)
	DeleteUser(ctx context.Context, id uint64) error
}

type UserHandler struct {
	users UserAPI
}

func NewUserHandler(users UserAPI) *UserHandler {
	return &UserHandler{users: users}
}

type profileReq struct {
	Name            *string `json:"name" validate:"omitempty,min=1"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Role            *string `json:"role" validate:"omitempty,role"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

func (r profileReq) input() service.ProfileInput {
	return service.ProfileInput{
		Name:            r.Name,
		Email:           r.Email,
		Role:            r.Role,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
	}
}

func actorOf(c echo.Context) (model.User, error) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return model.User{}, apperr.ErrUnauthenticated
	}
	return *u, nil
}

func (h *UserHandler) GetMe(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.users.GetMe(ctx, actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user", u)
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.users.UpdateMe(ctx, actor, req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user", u)
}

func (h *UserHandler) DeleteMe(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.users.DeleteMe(ctx, actor); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	p, err := pageOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.users.ListUsers(ctx, p)
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "users", users, len(users))
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user", u)
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.users.UpdateUser(ctx, id, req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user", u)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
