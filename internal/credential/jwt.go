package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any session token that is malformed,
// carries a bad signature, uses an unexpected algorithm or has expired.
var ErrInvalidToken = errors.New("credential: invalid session token")

// SessionClaims is what a validated session token proves about its bearer.
type SessionClaims struct {
	UserID   uint64
	IssuedAt time.Time
	Expires  time.Time
}

// SessionToken is a signed token together with its expiry.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// Manager issues and validates HS256 session tokens. The role is not
// embedded; callers resolve it from the stored identity on every request.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager signing with secret and issuing tokens valid
// for ttl.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// TTL is the lifetime of tokens issued by m.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a session token for userID. Claims: sub, iat, exp.
func (m *Manager) Issue(userID uint64) (SessionToken, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("sign session token: %w", err)
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// Validate parses raw and returns its claims. Every failure, including an
// expired token, is reported as ErrInvalidToken.
func (m *Manager) Validate(raw string) (SessionClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.IssuedAt == nil {
		return SessionClaims{}, fmt.Errorf("%w: missing iat", ErrInvalidToken)
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return SessionClaims{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return SessionClaims{
		UserID:   uid,
		IssuedAt: claims.IssuedAt.Time,
		Expires:  claims.ExpiresAt.Time,
	}, nil
}

// ChangedPasswordAfter reports whether a password change at changedAt
// invalidates a token issued at issuedAt. Comparison is at second
// granularity, matching the precision of the iat claim.
func ChangedPasswordAfter(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return issuedAt.Unix() < changedAt.Unix()
}
