package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/credential"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// UserLookup resolves the identity named by a session token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Gate authenticates bearer tokens and checks role membership. A request
// passes Authenticate first; Authorize only ever runs on an identity that
// Authenticate returned.
type Gate struct {
	tokens  *credential.Manager
	users   UserLookup
	metrics metrics.Recorder
}

func NewGate(tokens *credential.Manager, users UserLookup, rec metrics.Recorder) *Gate {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Gate{tokens: tokens, users: users, metrics: rec}
}

// Authenticate validates bearer and returns the active user it names.
//
//	""                           -> UNAUTHENTICATED
//	bad signature, expired, junk -> INVALID_TOKEN
//	user gone or deactivated     -> STALE_IDENTITY
//	password changed after iat   -> STALE_PASSWORD
func (g *Gate) Authenticate(ctx context.Context, bearer string) (model.User, error) {
	if bearer == "" {
		return model.User{}, g.deny(apperr.ErrUnauthenticated)
	}
	claims, err := g.tokens.Validate(bearer)
	if err != nil {
		logger.Debug("session token rejected", zap.Error(err))
		return model.User{}, g.deny(apperr.ErrInvalidToken)
	}
	u, err := g.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, g.deny(apperr.ErrStaleIdentity)
	}
	if err != nil {
		return model.User{}, apperr.Internal(err)
	}
	if credential.ChangedPasswordAfter(claims.IssuedAt, u.PasswordChangedAt) {
		return model.User{}, g.deny(apperr.ErrStalePassword)
	}
	return u, nil
}

// Authorize checks that u holds one of roles. An empty role set admits any
// authenticated identity; a nil identity is an authentication failure, not
// an authorization one.
func (g *Gate) Authorize(u *model.User, roles ...string) error {
	if u == nil {
		return g.deny(apperr.ErrUnauthenticated)
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return g.deny(apperr.ErrForbidden)
}

func (g *Gate) deny(e *apperr.Error) error {
	g.metrics.RecordGateDenial(e.Code)
	return e
}
