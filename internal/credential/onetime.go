package credential

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// OneTimeToken is a freshly issued single-use token. Raw goes to the user,
// Hash is what gets stored.
type OneTimeToken struct {
	Raw     string
	Hash    string
	Expires time.Time
}

// OneTimeIssuer issues and matches password-reset and email-verification
// tokens. Hashes are keyed with a server-side pepper so a leaked table
// cannot be brute-forced offline, while staying deterministic so a token
// can be looked up by its hash.
type OneTimeIssuer struct {
	pepper []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewOneTimeIssuer(pepper string, ttl time.Duration) *OneTimeIssuer {
	return &OneTimeIssuer{pepper: []byte(pepper), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (o *OneTimeIssuer) WithClock(now func() time.Time) *OneTimeIssuer {
	cp := *o
	cp.now = now
	return &cp
}

// Issue generates 32 random bytes, hex-encoded, plus their hash and expiry.
func (o *OneTimeIssuer) Issue() (OneTimeToken, error) {
	raw, err := randomHex(32)
	if err != nil {
		return OneTimeToken{}, err
	}
	return OneTimeToken{
		Raw:     raw,
		Hash:    o.Hash(raw),
		Expires: o.now().UTC().Add(o.ttl),
	}, nil
}

// Hash returns the hex HMAC-SHA256 of raw under the pepper.
func (o *OneTimeIssuer) Hash(raw string) string {
	mac := hmac.New(sha256.New, o.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Match hashes raw and compares it to storedHash in constant time. Expiry
// and single-use consumption are the caller's job.
func (o *OneTimeIssuer) Match(raw, storedHash string) bool {
	if raw == "" || storedHash == "" {
		return false
	}
	want, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(o.Hash(raw))
	return hmac.Equal(got, want)
}

// Now is the issuer's clock, shared with callers checking expiry.
func (o *OneTimeIssuer) Now() time.Time { return o.now().UTC() }

// randomHex returns n bytes of crypto/rand output, hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
