package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// UserService covers self-service profile changes and admin user management.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService { return &UserService{users: users} }

// ProfileInput holds the optional fields of a profile update. Nil leaves a
// field unchanged.
type ProfileInput struct {
	Name  *string
	Email *string
	Role  *string // admin updates only

	// Set when the caller tried to change the password through this path.
	Password        string
	PasswordConfirm string
}

// GetMe returns the caller's own record.
func (s *UserService) GetMe(ctx context.Context, actor model.User) (model.User, error) {
	return s.GetUser(ctx, actor.ID)
}

// UpdateMe changes the caller's name and email. Passwords are changed only
// through AuthService.UpdatePassword, and the role cannot be self-assigned.
func (s *UserService) UpdateMe(ctx context.Context, actor model.User, in ProfileInput) (model.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return model.User{}, apperr.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	in.Role = nil
	return s.update(ctx, actor.ID, in)
}

// DeleteMe deactivates the caller's account. The row stays, hidden from
// every read.
func (s *UserService) DeleteMe(ctx context.Context, actor model.User) error {
	if err := s.users.Deactivate(ctx, actor.ID); err != nil {
		return notFoundOr(err, "user")
	}
	return nil
}

// ListUsers returns one page of active users.
func (s *UserService) ListUsers(ctx context.Context, p Page) ([]model.User, error) {
	limit, offset := p.bounds()
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// GetUser fetches an active user.
func (s *UserService) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, notFoundOr(err, "user")
	}
	return u, nil
}

// UpdateUser lets an admin change name, email and role. Passwords are
// never set here.
func (s *UserService) UpdateUser(ctx context.Context, id uint64, in ProfileInput) (model.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return model.User{}, apperr.Validation("Passwords cannot be changed through this route.")
	}
	if in.Role != nil && !model.ValidRole(*in.Role) {
		return model.User{}, apperr.Validation("Role is either: user, guide, lead-guide, admin.")
	}
	return s.update(ctx, id, in)
}

// DeleteUser removes a user permanently along with their bookings and
// reviews.
func (s *UserService) DeleteUser(ctx context.Context, id uint64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundOr(err, "user")
	}
	return nil
}

func (s *UserService) update(ctx context.Context, id uint64, in ProfileInput) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, notFoundOr(err, "user")
	}
	name, email, role := u.Name, u.Email, ""
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email = repository.NormalizeEmail(*in.Email)
	}
	if in.Role != nil {
		role = *in.Role
	}
	if name == "" || email == "" {
		return model.User{}, apperr.Validation("Name and email cannot be empty.")
	}
	if err := s.users.UpdateProfile(ctx, id, name, email, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperr.ErrEmailTaken
		}
		return model.User{}, notFoundOr(err, "user")
	}
	return s.GetUser(ctx, id)
}

// notFoundOr maps repository.ErrNotFound to a NOT_FOUND error for resource
// and anything else to an internal error.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return apperr.Internal(err)
}
