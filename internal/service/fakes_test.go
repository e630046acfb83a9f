package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/repository"
)

// testClock is a settable time source shared by the credential issuers and
// the services under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// serialTx runs transactions one at a time, standing in for the row locks
// the real store takes.
type serialTx struct{ mu sync.Mutex }

func (s *serialTx) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.DBTX) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, nil)
}

// memUsers is an in-memory UserStore. Inactive rows are invisible to reads.
type memUsers struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]*model.User
}

func newMemUsers() *memUsers { return &memUsers{rows: map[uint64]*model.User{}} }

func (m *memUsers) add(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	u.ID = m.next
	u.Active = true
	u.Email = repository.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	m.rows[u.ID] = &u
	return u
}

func (m *memUsers) raw(id uint64) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memUsers) active(id uint64) (*model.User, error) {
	u, ok := m.rows[id]
	if !ok || !u.Active {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, nu repository.NewUser) (uint64, error) {
	m.mu.Lock()
	email := repository.NormalizeEmail(nu.Email)
	for _, u := range m.rows {
		if u.Email == email {
			m.mu.Unlock()
			return 0, repository.ErrDuplicate
		}
	}
	m.mu.Unlock()
	tok, exp := nu.EmailVerificationToken, nu.EmailVerificationExpires
	u := m.add(model.User{
		Name:                     nu.Name,
		Email:                    email,
		Role:                     nu.Role,
		PasswordHash:             nu.PasswordHash,
		EmailVerificationToken:   &tok,
		EmailVerificationExpires: &exp,
	})
	return u.ID, nil
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range m.rows {
		if u.Active && u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) byToken(pick func(u *model.User) (*string, *time.Time), hash string, now time.Time) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		tok, exp := pick(u)
		if u.Active && tok != nil && *tok == hash && exp != nil && exp.After(now) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByResetToken(_ context.Context, hash string, now time.Time) (model.User, error) {
	return m.byToken(func(u *model.User) (*string, *time.Time) {
		return u.PasswordResetToken, u.PasswordResetExpires
	}, hash, now)
}

func (m *memUsers) GetByVerificationToken(_ context.Context, hash string, now time.Time) (model.User, error) {
	return m.byToken(func(u *model.User) (*string, *time.Time) {
		return u.EmailVerificationToken, u.EmailVerificationExpires
	}, hash, now)
}

func (m *memUsers) List(_ context.Context, limit, offset int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.rows {
		if u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, name, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	for _, o := range m.rows {
		if o.ID != id && o.Email == email {
			return repository.ErrDuplicate
		}
	}
	u.Name, u.Email = name, email
	if role != "" {
		u.Role = role
	}
	return nil
}

func (m *memUsers) SetPasswordResetToken(_ context.Context, id uint64, hash *string, expires *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.PasswordResetToken, u.PasswordResetExpires = hash, expires
	return nil
}

func (m *memUsers) SetEmailVerificationToken(_ context.Context, id uint64, hash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.EmailVerificationToken, u.EmailVerificationExpires = &hash, &expires
	return nil
}

func (m *memUsers) ConsumeVerificationToken(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	if u.EmailVerificationToken == nil || *u.EmailVerificationToken != hash {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	u.EmailVerificationToken, u.EmailVerificationExpires = nil, nil
	return nil
}

func (m *memUsers) ConsumeResetToken(_ context.Context, id uint64, hash, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	if u.PasswordResetToken == nil || *u.PasswordResetToken != hash {
		return repository.ErrNotFound
	}
	u.PasswordHash, u.PasswordChangedAt = passwordHash, &changedAt
	u.PasswordResetToken, u.PasswordResetExpires = nil, nil
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.PasswordHash, u.PasswordChangedAt = passwordHash, &changedAt
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.Active = false
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memTours is an in-memory TourStore. Secret tours are hidden from public
// reads but visible to LockTx.
type memTours struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]*model.Tour

	within    []model.Tour
	distances []model.TourDistance
	stats     []model.TourStat
	plan      []model.MonthPlan
	lastQuery repository.TourListQuery
	lastArgs  []float64
}

func newMemTours() *memTours { return &memTours{rows: map[uint64]*model.Tour{}} }

func (m *memTours) add(t model.Tour) model.Tour {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	t.ID = m.next
	m.rows[t.ID] = &t
	return t
}

func (m *memTours) get(id uint64) model.Tour {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memTours) CreateTx(_ context.Context, _ repository.DBTX, t *model.Tour) error {
	m.mu.Lock()
	for _, o := range m.rows {
		if o.Name == t.Name {
			m.mu.Unlock()
			return repository.ErrDuplicate
		}
	}
	m.mu.Unlock()
	*t = m.add(*t)
	return nil
}

func (m *memTours) UpdateTx(_ context.Context, _ repository.DBTX, t *model.Tour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[t.ID]
	if !ok || cur.SecretTour {
		return repository.ErrNotFound
	}
	for _, o := range m.rows {
		if o.ID != t.ID && o.Name == t.Name {
			return repository.ErrDuplicate
		}
	}
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTours) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || t.SecretTour {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memTours) GetByID(_ context.Context, id uint64) (model.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || t.SecretTour {
		return model.Tour{}, repository.ErrNotFound
	}
	return *t, nil
}

func (m *memTours) LockTx(_ context.Context, _ repository.DBTX, id uint64) (model.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return model.Tour{}, repository.ErrNotFound
	}
	return *t, nil
}

func (m *memTours) List(_ context.Context, q repository.TourListQuery) ([]model.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var out []model.Tour
	for _, t := range m.rows {
		if !t.SecretTour {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTours) Within(_ context.Context, lat, lng, radius float64) ([]model.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArgs = []float64{lat, lng, radius}
	return m.within, nil
}

func (m *memTours) Distances(_ context.Context, lat, lng, mult float64) ([]model.TourDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArgs = []float64{lat, lng, mult}
	return m.distances, nil
}

func (m *memTours) Stats(_ context.Context, minRating float64) ([]model.TourStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArgs = []float64{minRating}
	return append([]model.TourStat(nil), m.stats...), nil
}

func (m *memTours) MonthlyPlan(_ context.Context, year int) ([]model.MonthPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastArgs = []float64{float64(year)}
	return m.plan, nil
}

func (m *memTours) ReserveSeatsTx(_ context.Context, _ repository.DBTX, tourID uint64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tourID]
	if !ok || t.BookedSeats+n > t.MaxGroupSize {
		return repository.ErrCapacity
	}
	t.BookedSeats += n
	return nil
}

func (m *memTours) ReleaseSeatsTx(_ context.Context, _ repository.DBTX, tourID uint64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tourID]
	if !ok {
		return repository.ErrNotFound
	}
	t.BookedSeats -= n
	if t.BookedSeats < 0 {
		t.BookedSeats = 0
	}
	return nil
}

func (m *memTours) SetRatingsTx(_ context.Context, _ repository.DBTX, tourID uint64, quantity int, average float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tourID]
	if !ok {
		return repository.ErrNotFound
	}
	t.RatingsQuantity, t.RatingsAverage = quantity, average
	return nil
}

// memBookings is an in-memory BookingStore with the (user, tour) unique key.
type memBookings struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]*model.Booking
}

func newMemBookings() *memBookings { return &memBookings{rows: map[uint64]*model.Booking{}} }

func (m *memBookings) find(userID, tourID uint64) *model.Booking {
	for _, b := range m.rows {
		if b.UserID == userID && b.TourID == tourID {
			return b
		}
	}
	return nil
}

func (m *memBookings) ExistsTx(_ context.Context, _ repository.DBTX, userID, tourID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(userID, tourID) != nil, nil
}

func (m *memBookings) ActiveExistsTx(_ context.Context, _ repository.DBTX, userID, tourID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.find(userID, tourID)
	return b != nil && b.HoldsSeats(), nil
}

func (m *memBookings) CreateTx(_ context.Context, _ repository.DBTX, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(b.UserID, b.TourID) != nil {
		return repository.ErrDuplicate
	}
	m.next++
	b.ID = m.next
	b.CreatedAt = time.Now().UTC()
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return *b, nil
}

func (m *memBookings) GetForUpdateTx(ctx context.Context, _ repository.DBTX, id uint64) (model.Booking, error) {
	return m.GetByID(ctx, id)
}

func (m *memBookings) List(_ context.Context, tourID uint64, limit, offset int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		if tourID == 0 || b.TourID == tourID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBookings) UpdateStatusTx(_ context.Context, _ repository.DBTX, id uint64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	return nil
}

func (m *memBookings) DeleteTx(_ context.Context, _ repository.DBTX, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memReviews is an in-memory ReviewStore with the (user, tour) unique key.
type memReviews struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]*model.Review
}

func newMemReviews() *memReviews { return &memReviews{rows: map[uint64]*model.Review{}} }

func (m *memReviews) ExistsTx(_ context.Context, _ repository.DBTX, userID, tourID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rv := range m.rows {
		if rv.UserID == userID && rv.TourID == tourID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReviews) CreateTx(ctx context.Context, tx repository.DBTX, rv *model.Review) error {
	if exists, _ := m.ExistsTx(ctx, tx, rv.UserID, rv.TourID); exists {
		return repository.ErrDuplicate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	rv.ID = m.next
	cp := *rv
	m.rows[rv.ID] = &cp
	return nil
}

func (m *memReviews) GetByID(_ context.Context, id uint64) (model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.rows[id]
	if !ok {
		return model.Review{}, repository.ErrNotFound
	}
	return *rv, nil
}

func (m *memReviews) GetByIDTx(ctx context.Context, _ repository.DBTX, id uint64) (model.Review, error) {
	return m.GetByID(ctx, id)
}

func (m *memReviews) List(_ context.Context, tourID uint64, limit, offset int) ([]model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Review
	for _, rv := range m.rows {
		if tourID == 0 || rv.TourID == tourID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memReviews) UpdateTx(_ context.Context, _ repository.DBTX, id uint64, text string, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	rv.Review, rv.Rating = text, rating
	return nil
}

func (m *memReviews) DeleteTx(_ context.Context, _ repository.DBTX, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memReviews) RatingStatsTx(_ context.Context, _ repository.DBTX, tourID uint64) (model.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st model.RatingStats
	sum := 0
	for _, rv := range m.rows {
		if rv.TourID == tourID {
			st.Quantity++
			sum += rv.Rating
		}
	}
	if st.Quantity > 0 {
		st.Average = float64(sum) / float64(st.Quantity)
	}
	return st, nil
}

// fakeMailer records dispatched links and fails when err is set.
type fakeMailer struct {
	mu     sync.Mutex
	err    error
	reset  []string
	verify []string
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, _ model.User, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reset = append(f.reset, url)
	return nil
}

func (f *fakeMailer) SendEmailVerification(_ context.Context, _ model.User, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.verify = append(f.verify, url)
	return nil
}

// fakeEvents records published booking event kinds.
type fakeEvents struct {
	mu    sync.Mutex
	err   error
	kinds []string
}

func (f *fakeEvents) PublishBookingEvent(_ context.Context, kind string, _ model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return f.err
}

var errBroker = errors.New("broker unavailable")
