package credential

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a salted bcrypt hash of plain using the given cost.
// A cost outside bcrypt's accepted range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(plain, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// IsPasswordTooLong reports whether bcrypt would reject plain outright.
func IsPasswordTooLong(plain string) bool {
	_, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
