package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

type fakeTours struct {
	list     service.ListToursInput
	created  service.TourInput
	within   []interface{}
	year     int
	distUnit string
}

func (f *fakeTours) ListTours(_ context.Context, in service.ListToursInput) ([]model.Tour, error) {
	f.list = in
	return []model.Tour{{ID: 1, Name: "The Forest Hiker"}}, nil
}
func (f *fakeTours) GetTour(_ context.Context, id uint64) (service.TourDetail, error) {
	if id != 1 {
		return service.TourDetail{}, apperr.NotFound("tour")
	}
	return service.TourDetail{Tour: model.Tour{ID: 1, Name: "The Forest Hiker"}}, nil
}
func (f *fakeTours) CreateTour(_ context.Context, in service.TourInput) (model.Tour, error) {
	f.created = in
	return model.Tour{ID: 2, Name: *in.Name}, nil
}
func (f *fakeTours) UpdateTour(_ context.Context, id uint64, in service.TourInput) (model.Tour, error) {
	return model.Tour{ID: id}, nil
}
func (f *fakeTours) DeleteTour(context.Context, uint64) error { return nil }
func (f *fakeTours) TourStats(context.Context) ([]model.TourStat, error) {
	return []model.TourStat{{Difficulty: "EASY", NumTours: 2}}, nil
}
func (f *fakeTours) MonthlyPlan(_ context.Context, year int) ([]model.MonthPlan, error) {
	f.year = year
	return []model.MonthPlan{}, nil
}
func (f *fakeTours) ToursWithin(_ context.Context, distance float64, center, unit string) ([]model.Tour, error) {
	f.within = []interface{}{distance, center, unit}
	return []model.Tour{}, nil
}
func (f *fakeTours) Distances(_ context.Context, center, unit string) ([]model.TourDistance, error) {
	f.distUnit = unit
	if unit != service.UnitMiles && unit != service.UnitKilometers {
		return nil, apperr.Validation("Unit must be either mi or km.")
	}
	return []model.TourDistance{{ID: 1, Name: "The Forest Hiker", Distance: 12.5}}, nil
}

func TestTours_ListQuery(t *testing.T) {
	ft := &fakeTours{}
	e := newEcho()
	e.GET("/tours", NewTourHandler(ft).ListTours)

	rec := do(e, http.MethodGet, "/tours?page=3&limit=10&sort=-price&difficulty=easy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, ft.list.Page.Page)
	assert.Equal(t, 10, ft.list.Page.Limit)
	assert.Equal(t, "-price", ft.list.Sort)
	assert.Equal(t, "easy", ft.list.Difficulty)
	assert.Equal(t, float64(1), decode(t, rec)["results"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/tours?page=two", "").Code)
}

func TestTours_GetAndCreate(t *testing.T) {
	ft := &fakeTours{}
	h := NewTourHandler(ft)
	e := newEcho()
	e.GET("/tours/:id", h.GetTour)
	e.POST("/tours", h.CreateTour)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/tours/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/tours/2", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/tours/zero", "").Code)

	rec := do(e, http.MethodPost, "/tours",
		`{"name":"The Snow Adventurer","price":997,"maxGroupSize":10,"duration":4,"difficulty":"hard","ratingsAverage":5,"bookedSeats":9}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, ft.created.MaxGroupSize)
	assert.Equal(t, 10, *ft.created.MaxGroupSize)
	assert.Equal(t, "hard", *ft.created.Difficulty)

	rec = do(e, http.MethodPost, "/tours", `{"name":"The Snow Adventurer","difficulty":"extreme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTours_GeoRoutes(t *testing.T) {
	ft := &fakeTours{}
	h := NewTourHandler(ft)
	e := newEcho()
	e.GET("/tours-within/:distance/center/:latlng/unit/:unit", h.ToursWithin)
	e.GET("/distances/:latlng/unit/:unit", h.Distances)
	e.GET("/month-plan/:year", h.MonthlyPlan)

	rec := do(e, http.MethodGet, "/tours-within/233/center/34.111745,-118.113491/unit/mi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{233.0, "34.111745,-118.113491", "mi"}, ft.within)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/tours-within/far/center/1,2/unit/mi", "").Code)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/distances/34.1,-118.1/unit/km", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/distances/34.1,-118.1/unit/ft", "").Code)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/month-plan/2021", "").Code)
	assert.Equal(t, 2021, ft.year)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/month-plan/next", "").Code)
}

type fakeReviews struct {
	createdFor uint64
	input      service.ReviewInput
	actor      model.User
}

func (f *fakeReviews) CreateReview(_ context.Context, actor model.User, tourID uint64, in service.ReviewInput) (model.Review, error) {
	f.createdFor, f.input, f.actor = tourID, in, actor
	if actor.Role == model.RoleUser && tourID == 13 {
		return model.Review{}, apperr.ErrBookingRequired
	}
	return model.Review{ID: 1, TourID: tourID}, nil
}
func (f *fakeReviews) UpdateReview(_ context.Context, actor model.User, id uint64, in service.ReviewInput) (model.Review, error) {
	f.input, f.actor = in, actor
	if actor.ID != 7 && actor.Role != model.RoleAdmin {
		return model.Review{}, apperr.ErrForbidden
	}
	return model.Review{ID: id}, nil
}
func (f *fakeReviews) DeleteReview(_ context.Context, actor model.User, _ uint64) error {
	f.actor = actor
	return nil
}
func (f *fakeReviews) GetReview(_ context.Context, id uint64) (model.Review, error) {
	return model.Review{ID: id}, nil
}
func (f *fakeReviews) ListReviews(_ context.Context, tourID uint64, _ service.Page) ([]model.Review, error) {
	f.createdFor = tourID
	return []model.Review{}, nil
}

func TestReviews_Create(t *testing.T) {
	fr := &fakeReviews{}
	h := NewReviewHandler(fr)
	e := newEcho()
	user := asUser(model.User{ID: 7, Role: model.RoleUser})
	e.POST("/tours/:tourId/reviews", h.CreateReview, user)
	e.POST("/reviews", h.CreateReview, user)

	rec := do(e, http.MethodPost, "/tours/4/reviews", `{"review":"Loved it","rating":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(4), fr.createdFor)
	require.NotNil(t, fr.input.Rating)
	assert.Equal(t, 5, *fr.input.Rating)

	rec = do(e, http.MethodPost, "/tours/13/reviews", `{"review":"Never went","rating":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.CodeBookingRequired, decode(t, rec)["code"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/reviews", `{"review":"x","rating":6}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/reviews", `{"review":"x","rating":4}`).Code,
		"a review needs a tour")
}

func TestReviews_UpdateAndDelete(t *testing.T) {
	fr := &fakeReviews{}
	h := NewReviewHandler(fr)
	e := newEcho()
	e.PATCH("/own/:id", h.UpdateReview, asUser(model.User{ID: 7, Role: model.RoleUser}))
	e.PATCH("/other/:id", h.UpdateReview, asUser(model.User{ID: 8, Role: model.RoleUser}))
	e.DELETE("/reviews/:id", h.DeleteReview, asUser(model.User{ID: 1, Role: model.RoleAdmin}))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPatch, "/own/3", `{"rating":4}`).Code)
	assert.Nil(t, fr.input.Review, "absent fields stay nil")
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPatch, "/other/3", `{"rating":4}`).Code)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/reviews/3", "").Code)
	assert.Equal(t, model.RoleAdmin, fr.actor.Role)
}

type fakeUsers struct {
	updated service.ProfileInput
	deleted uint64
}

func (f *fakeUsers) GetMe(_ context.Context, actor model.User) (model.User, error) { return actor, nil }
func (f *fakeUsers) UpdateMe(_ context.Context, actor model.User, in service.ProfileInput) (model.User, error) {
	f.updated = in
	if in.Password != "" {
		return model.User{}, apperr.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	return actor, nil
}
func (f *fakeUsers) DeleteMe(_ context.Context, actor model.User) error {
	f.deleted = actor.ID
	return nil
}
func (f *fakeUsers) ListUsers(context.Context, service.Page) ([]model.User, error) {
	return []model.User{}, nil
}
func (f *fakeUsers) GetUser(_ context.Context, id uint64) (model.User, error) {
	return model.User{ID: id}, nil
}
func (f *fakeUsers) UpdateUser(_ context.Context, id uint64, in service.ProfileInput) (model.User, error) {
	f.updated = in
	return model.User{ID: id}, nil
}
func (f *fakeUsers) DeleteUser(_ context.Context, id uint64) error {
	f.deleted = id
	return nil
}

func TestUsers_Me(t *testing.T) {
	fu := &fakeUsers{}
	h := NewUserHandler(fu)
	e := newEcho()
	me := asUser(model.User{ID: 7, Name: "Jonas", Role: model.RoleUser})
	e.GET("/me", h.GetMe, me)
	e.PATCH("/updateMe", h.UpdateMe, me)
	e.DELETE("/deleteMe", h.DeleteMe, me)

	rec := do(e, http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Jonas", data["user"].(map[string]interface{})["name"])

	assert.Equal(t, http.StatusOK, do(e, http.MethodPatch, "/updateMe", `{"name":"Jonas S."}`).Code)
	require.NotNil(t, fu.updated.Name)
	assert.Equal(t, "Jonas S.", *fu.updated.Name)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPatch, "/updateMe", `{"password":"hunter22"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/deleteMe", "").Code)
	assert.Equal(t, uint64(7), fu.deleted)
}

func TestUsers_Admin(t *testing.T) {
	fu := &fakeUsers{}
	h := NewUserHandler(fu)
	e := newEcho()
	e.GET("/users", h.ListUsers)
	e.PATCH("/users/:id", h.UpdateUser)
	e.DELETE("/users/:id", h.DeleteUser)

	rec := do(e, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["results"])

	assert.Equal(t, http.StatusOK, do(e, http.MethodPatch, "/users/4", `{"role":"lead-guide"}`).Code)
	assert.Equal(t, model.RoleLeadGuide, *fu.updated.Role)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPatch, "/users/4", `{"role":"root"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/users/4", "").Code)
	assert.Equal(t, uint64(4), fu.deleted)
}
