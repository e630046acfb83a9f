package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// activeUser is the soft-delete predicate. Every read of the users table
// goes through userSelect, which applies it, so deactivated accounts are
// invisible everywhere.
const activeUser = "active = TRUE"

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires,
	email_verification_token, email_verification_expires,
	active, email_verified, created_at`

// userSelect builds a SELECT over active users with the given extra filter.
func userSelect(where string) string {
	q := "SELECT " + userColumns + " FROM users WHERE " + activeUser
	if where != "" {
		q += " AND " + where
	}
	return q
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u                              model.User
		changedAt, resetExp, verifyExp sql.NullTime
		resetToken, verifyToken        sql.NullString
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.PasswordHash, &changedAt,
		&resetToken, &resetExp, &verifyToken, &verifyExp,
		&u.Active, &u.EmailVerified, &u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordChangedAt = nullTime(changedAt)
	u.PasswordResetExpires = nullTime(resetExp)
	u.EmailVerificationExpires = nullTime(verifyExp)
	u.PasswordResetToken = nullString(resetToken)
	u.EmailVerificationToken = nullString(verifyToken)
	return u, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// NormalizeEmail lower-cases and trims an address before it is stored or
// compared.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// UserRepo provides access to the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the columns set at signup.
type NewUser struct {
	Name                     string
	Email                    string
	Role                     string
	PasswordHash             string
	EmailVerificationToken   string
	EmailVerificationExpires time.Time
}

// Create inserts an unverified user and returns its ID. ErrDuplicate means
// the email is taken.
func (r *UserRepo) Create(ctx context.Context, u NewUser) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (name, email, role, password_hash, email_verification_token, email_verification_expires)
		 VALUES (?,?,?,?,?,?)`,
		strings.TrimSpace(u.Name), NormalizeEmail(u.Email), u.Role, u.PasswordHash,
		u.EmailVerificationToken, u.EmailVerificationExpires)
	if err != nil {
		return 0, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect("id = ?")+" LIMIT 1", id))
	return u, mapErr(err)
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect("email = ?")+" LIMIT 1", NormalizeEmail(email)))
	return u, mapErr(err)
}

// GetByResetToken fetches the active user holding an unexpired reset hash.
func (r *UserRepo) GetByResetToken(ctx context.Context, hash string, now time.Time) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		userSelect("password_reset_token = ? AND password_reset_expires > ?")+" LIMIT 1", hash, now))
	return u, mapErr(err)
}

// GetByVerificationToken fetches the active user holding an unexpired
// email verification hash.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, hash string, now time.Time) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		userSelect("email_verification_token = ? AND email_verification_expires > ?")+" LIMIT 1", hash, now))
	return u, mapErr(err)
}

// List returns active users ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect("")+" ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile changes name, email and role of an active user. An empty
// role leaves it unchanged.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, email, role string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, role = COALESCE(NULLIF(?, ''), role) WHERE id = ? AND "+activeUser,
		strings.TrimSpace(name), NormalizeEmail(email), role, id)
	return expectOne(res, err)
}

// SetPasswordResetToken stores a reset hash and expiry. Passing a nil hash
// clears both.
func (r *UserRepo) SetPasswordResetToken(ctx context.Context, id uint64, hash *string, expires *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token = ?, password_reset_expires = ? WHERE id = ?",
		hash, expires, id)
	return err
}

// SetEmailVerificationToken stores a verification hash and expiry.
func (r *UserRepo) SetEmailVerificationToken(ctx context.Context, id uint64, hash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verification_token = ?, email_verification_expires = ? WHERE id = ?",
		hash, expires, id)
	return err
}

// ConsumeVerificationToken marks the email verified and clears the token,
// but only if hash is still the stored one. ErrNotFound means the token was
// already used.
func (r *UserRepo) ConsumeVerificationToken(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, email_verification_token = NULL, email_verification_expires = NULL
		 WHERE id = ? AND email_verification_token = ?`, id, hash)
	return expectOne(res, err)
}

// ConsumeResetToken sets a new password and clears the reset token, but only
// if hash is still the stored one.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, id uint64, hash, passwordHash string, changedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_changed_at = ?, password_reset_token = NULL, password_reset_expires = NULL
		 WHERE id = ? AND password_reset_token = ?`, passwordHash, changedAt, id, hash)
	return expectOne(res, err)
}

// UpdatePassword sets a new password hash and change timestamp.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string, changedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, password_changed_at = ? WHERE id = ? AND "+activeUser,
		passwordHash, changedAt, id)
	return expectOne(res, err)
}

// Deactivate soft-deletes a user.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET active = FALSE WHERE id = ? AND "+activeUser, id)
	return expectOne(res, err)
}

// Delete removes the row outright. Bookings and reviews cascade.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	return expectOne(res, err)
}
