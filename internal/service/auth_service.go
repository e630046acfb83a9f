package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/credential"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// MinPasswordLength is the shortest password accepted at signup or reset.
const MinPasswordLength = 8

// Dispatch kinds reported to metrics.
const (
	dispatchVerification = "email_verification"
	dispatchReset        = "password_reset"
)

// AuthConfig carries the settings AuthService needs from config.Config.
type AuthConfig struct {
	BaseURL    string // origin used in emailed links
	BcryptCost int
}

// AuthService owns the credential lifecycle: signup and email verification,
// login, and the password reset and change flows.
type AuthService struct {
	users    UserStore
	sessions *credential.Manager
	onetime  *credential.OneTimeIssuer
	mailer   Dispatcher
	metrics  metrics.Recorder
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthService(users UserStore, sessions *credential.Manager, onetime *credential.OneTimeIssuer,
	mailer Dispatcher, rec metrics.Recorder, cfg AuthConfig) *AuthService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AuthService{
		users:    users,
		sessions: sessions,
		onetime:  onetime,
		mailer:   mailer,
		metrics:  rec,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SignupInput is the payload of a signup request.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            string
}

// Signup creates an unverified user and emails a verification link. Only
// the user role can be chosen here; admins assign the others. If the email
// cannot be dispatched the new user is removed again, so no account is left
// behind that can never be verified.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return model.User{}, apperr.Validation("Please provide your name and email!")
	}
	if err := checkNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return model.User{}, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return model.User{}, apperr.Validation("Role is either: user, guide, lead-guide, admin.")
	}
	if role != model.RoleUser {
		return model.User{}, apperr.New(apperr.KindAuthorization, apperr.CodeForbidden,
			"New accounts get the user role. Ask an admin for a different one.")
	}

	hash, err := credential.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, apperr.Internal(err)
	}
	tok, err := s.onetime.Issue()
	if err != nil {
		return model.User{}, apperr.Internal(err)
	}
	id, err := s.users.Create(ctx, repository.NewUser{
		Name:                     in.Name,
		Email:                    in.Email,
		Role:                     role,
		PasswordHash:             hash,
		EmailVerificationToken:   tok.Hash,
		EmailVerificationExpires: tok.Expires,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, apperr.ErrEmailTaken
	}
	if err != nil {
		return model.User{}, apperr.Internal(err)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, apperr.Internal(err)
	}

	url := s.cfg.BaseURL + "/api/v1/users/verifyEmail/" + tok.Raw
	if err := s.mailer.SendEmailVerification(ctx, u, url); err != nil {
		s.metrics.RecordDispatch(dispatchVerification, false)
		logger.Error("verification email dispatch failed", zap.Uint64("user_id", id), zap.Error(err))
		if delErr := s.users.Delete(ctx, id); delErr != nil {
			logger.Error("cleanup of unverifiable user failed", zap.Uint64("user_id", id), zap.Error(delErr))
		}
		return model.User{}, apperr.Wrap(apperr.KindDependency, apperr.CodeDispatchFailed,
			"There was an error sending the verification email. Try again later!", err)
	}
	s.metrics.RecordDispatch(dispatchVerification, true)
	return u, nil
}

// VerifyEmail consumes a verification token. A token works once.
func (s *AuthService) VerifyEmail(ctx context.Context, raw string) error {
	u, hash, err := s.lookupToken(ctx, raw, s.users.GetByVerificationToken, func(u model.User) *string {
		return u.EmailVerificationToken
	})
	if err != nil {
		return err
	}
	if err := s.users.ConsumeVerificationToken(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrTokenExpired
		}
		return apperr.Internal(err)
	}
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account and emails it. It replaces any earlier token, so a link lost in
// delivery or left to expire never strands the account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperr.Validation("Please provide your email!")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, apperr.CodeNotFound, "There is no user with this email.")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if u.EmailVerified {
		return apperr.ErrAlreadyVerified
	}
	tok, err := s.onetime.Issue()
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.SetEmailVerificationToken(ctx, u.ID, tok.Hash, tok.Expires); err != nil {
		return apperr.Internal(err)
	}

	url := s.cfg.BaseURL + "/api/v1/users/verifyEmail/" + tok.Raw
	if err := s.mailer.SendEmailVerification(ctx, u, url); err != nil {
		s.metrics.RecordDispatch(dispatchVerification, false)
		logger.Error("verification email re-dispatch failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return apperr.Wrap(apperr.KindDependency, apperr.CodeDispatchFailed,
			"There was an error sending the verification email. Try again later!", err)
	}
	s.metrics.RecordDispatch(dispatchVerification, true)
	return nil
}

// Login checks credentials and issues a session token. Unverified accounts
// cannot log in.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.User, credential.SessionToken, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return model.User{}, credential.SessionToken{}, apperr.Validation("Please enter your email and password!")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, credential.SessionToken{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	if !credential.VerifyPassword(password, u.PasswordHash) {
		return model.User{}, credential.SessionToken{}, apperr.ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return model.User{}, credential.SessionToken{}, apperr.ErrEmailNotVerified
	}
	tok, err := s.issue(u)
	return u, tok, err
}

// ForgotPassword stores a reset token and emails it. When the email cannot
// be dispatched the stored token is cleared again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperr.Validation("Please provide your email!")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, apperr.CodeNotFound, "There is no user with this email.")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	tok, err := s.onetime.Issue()
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.SetPasswordResetToken(ctx, u.ID, &tok.Hash, &tok.Expires); err != nil {
		return apperr.Internal(err)
	}

	url := s.cfg.BaseURL + "/api/v1/users/resetPassword/" + tok.Raw
	if err := s.mailer.SendPasswordReset(ctx, u, url); err != nil {
		s.metrics.RecordDispatch(dispatchReset, false)
		logger.Error("password reset email dispatch failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		if clrErr := s.users.SetPasswordResetToken(ctx, u.ID, nil, nil); clrErr != nil {
			logger.Error("clearing reset token failed", zap.Uint64("user_id", u.ID), zap.Error(clrErr))
		}
		return apperr.Wrap(apperr.KindDependency, apperr.CodeDispatchFailed,
			"There was an error sending the email. Try again later!", err)
	}
	s.metrics.RecordDispatch(dispatchReset, true)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and logs the
// user in. Sessions issued before the reset become stale.
func (s *AuthService) ResetPassword(ctx context.Context, raw, password, confirm string) (model.User, credential.SessionToken, error) {
	if err := checkNewPassword(password, confirm); err != nil {
		return model.User{}, credential.SessionToken{}, err
	}
	u, hash, err := s.lookupToken(ctx, raw, s.users.GetByResetToken, func(u model.User) *string {
		return u.PasswordResetToken
	})
	if err != nil {
		return model.User{}, credential.SessionToken{}, err
	}
	pwHash, err := credential.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	changedAt := s.changedAt()
	if err := s.users.ConsumeResetToken(ctx, u.ID, hash, pwHash, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, credential.SessionToken{}, apperr.ErrTokenExpired
		}
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	u.PasswordHash, u.PasswordChangedAt = pwHash, &changedAt
	u.PasswordResetToken, u.PasswordResetExpires = nil, nil
	tok, err := s.issue(u)
	return u, tok, err
}

// UpdatePassword changes the password of an authenticated user after
// checking the current one, and returns a fresh session.
func (s *AuthService) UpdatePassword(ctx context.Context, actor model.User, current, password, confirm string) (model.User, credential.SessionToken, error) {
	u, err := s.users.GetByID(ctx, actor.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, credential.SessionToken{}, apperr.ErrStaleIdentity
	}
	if err != nil {
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	if !credential.VerifyPassword(current, u.PasswordHash) {
		return model.User{}, credential.SessionToken{}, apperr.New(apperr.KindAuthentication,
			apperr.CodeInvalidCredentials, "Your current password is wrong!")
	}
	if err := checkNewPassword(password, confirm); err != nil {
		return model.User{}, credential.SessionToken{}, err
	}
	pwHash, err := credential.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	changedAt := s.changedAt()
	if err := s.users.UpdatePassword(ctx, u.ID, pwHash, changedAt); err != nil {
		return model.User{}, credential.SessionToken{}, apperr.Internal(err)
	}
	u.PasswordHash, u.PasswordChangedAt = pwHash, &changedAt
	tok, err := s.issue(u)
	return u, tok, err
}

// SessionTTL is the lifetime of issued session tokens.
func (s *AuthService) SessionTTL() time.Duration { return s.sessions.TTL() }

// changedAt is the password change instant at the precision of the iat
// claim. The session issued right after the change shares its second and
// stays valid; DATETIME columns would otherwise round it up.
func (s *AuthService) changedAt() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func (s *AuthService) issue(u model.User) (credential.SessionToken, error) {
	tok, err := s.sessions.Issue(u.ID)
	if err != nil {
		return credential.SessionToken{}, apperr.Internal(err)
	}
	return tok, nil
}

// lookupToken finds the user holding an unexpired one-time token matching
// raw. Every miss is reported as TOKEN_EXPIRED.
func (s *AuthService) lookupToken(ctx context.Context, raw string,
	find func(context.Context, string, time.Time) (model.User, error),
	stored func(model.User) *string) (model.User, string, error) {
	if raw == "" {
		return model.User{}, "", apperr.ErrTokenExpired
	}
	hash := s.onetime.Hash(raw)
	u, err := find(ctx, hash, s.onetime.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, "", apperr.ErrTokenExpired
	}
	if err != nil {
		return model.User{}, "", apperr.Internal(err)
	}
	if h := stored(u); h == nil || !s.onetime.Match(raw, *h) {
		return model.User{}, "", apperr.ErrTokenExpired
	}
	return u, hash, nil
}

func checkNewPassword(password, confirm string) error {
	switch {
	case len(password) < MinPasswordLength:
		return apperr.Validation("Password must be at least 8 characters.").
			WithDetails(map[string]string{"password": "min"})
	case credential.IsPasswordTooLong(password):
		return apperr.Validation("Password is too long.").
			WithDetails(map[string]string{"password": "max"})
	case password != confirm:
		return apperr.Validation("Passwords are not the same!").
			WithDetails(map[string]string{"passwordConfirm": "eqfield"})
	}
	return nil
}
