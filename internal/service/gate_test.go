package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/credential"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/metrics"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newGateFixture(t *testing.T) (*testClock, *credential.Manager, *memUsers, *Gate) {
	t.Helper()
	clock := newTestClock(t0)
	tokens := credential.NewManager("gate-secret", time.Hour).WithClock(clock.Now)
	users := newMemUsers()
	return clock, tokens, users, NewGate(tokens, users, nil)
}

func TestGate_AuthenticateValidToken(t *testing.T) {
	_, tokens, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com", Role: model.RoleGuide})
	tok, err := tokens.Issue(u.ID)
	require.NoError(t, err)

	got, err := gate.Authenticate(context.Background(), tok.Token)

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, model.RoleGuide, got.Role)
}

func TestGate_MissingToken(t *testing.T) {
	_, _, _, gate := newGateFixture(t)

	_, err := gate.Authenticate(context.Background(), "")

	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGate_ExpiredTokenIsAuthenticationFailure(t *testing.T) {
	clock, tokens, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com", Role: model.RoleUser})
	tok, err := tokens.Issue(u.ID)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	// A role-restricted route never reaches Authorize with an expired token.
	_, err = gate.Authenticate(context.Background(), tok.Token)

	require.ErrorIs(t, err, apperr.ErrInvalidToken)
	assert.Equal(t, apperr.KindAuthentication, apperr.As(err).Kind)
}

func TestGate_ForeignSignature(t *testing.T) {
	_, _, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com"})
	other := credential.NewManager("someone-else", time.Hour)
	tok, err := other.Issue(u.ID)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), tok.Token)

	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestGate_StaleIdentity(t *testing.T) {
	_, tokens, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com"})
	tok, err := tokens.Issue(u.ID)
	require.NoError(t, err)
	require.NoError(t, users.Deactivate(context.Background(), u.ID))

	_, err = gate.Authenticate(context.Background(), tok.Token)

	assert.ErrorIs(t, err, apperr.ErrStaleIdentity)
}

func TestGate_StalePassword(t *testing.T) {
	clock, tokens, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com"})
	tok, err := tokens.Issue(u.ID)
	require.NoError(t, err)

	changed := t0.Add(time.Minute)
	require.NoError(t, users.UpdatePassword(context.Background(), u.ID, "new-hash", changed))
	clock.Advance(2 * time.Minute)

	_, err = gate.Authenticate(context.Background(), tok.Token)

	assert.ErrorIs(t, err, apperr.ErrStalePassword)
}

func TestGate_TokenIssuedInSameSecondAsChangeStaysValid(t *testing.T) {
	_, tokens, users, gate := newGateFixture(t)
	u := users.add(model.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, users.UpdatePassword(context.Background(), u.ID, "new-hash", t0))
	tok, err := tokens.Issue(u.ID)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), tok.Token)

	assert.NoError(t, err)
}

func TestGate_Authorize(t *testing.T) {
	_, _, _, gate := newGateFixture(t)
	guide := &model.User{ID: 1, Role: model.RoleGuide}

	assert.NoError(t, gate.Authorize(guide))
	assert.NoError(t, gate.Authorize(guide, model.RoleAdmin, model.RoleGuide))
	assert.ErrorIs(t, gate.Authorize(guide, model.RoleAdmin, model.RoleLeadGuide), apperr.ErrForbidden)
	assert.ErrorIs(t, gate.Authorize(nil, model.RoleAdmin), apperr.ErrUnauthenticated)
}

func TestGate_RecordsDenials(t *testing.T) {
	reg := prometheus.NewRegistry()
	col := metrics.NewCollector(reg)
	gate := NewGate(credential.NewManager("s", time.Hour), newMemUsers(), col)

	_, _ = gate.Authenticate(context.Background(), "")
	_, _ = gate.Authenticate(context.Background(), "not-a-jwt")
	_ = gate.Authorize(&model.User{Role: model.RoleUser}, model.RoleAdmin)

	out, err := testutil.GatherAndCount(reg, "natours_gate_denials_total")
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}
