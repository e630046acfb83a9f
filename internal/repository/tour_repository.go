package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
)

// publicTour hides secret tours from every read.
const publicTour = "secret_tour = FALSE"

const tourColumns = `id, name, slug, price, price_discount, duration, max_group_size, difficulty,
	ratings_average, ratings_quantity, booked_seats, summary, description, image_cover, images,
	secret_tour, start_lat, start_lng, start_address, start_description, locations, guides, created_at`

// TourRepo provides access to the tours and tour_start_dates tables.
type TourRepo struct{ DB *sql.DB }

func NewTourRepo(db *sql.DB) *TourRepo { return &TourRepo{DB: db} }

// TourListQuery pages and orders the public tour listing.
type TourListQuery struct {
	Limit      int
	Offset     int
	Sort       string // a key of tourSorts, optionally prefixed with '-'
	Difficulty string
}

// tourSorts whitelists the sortable fields and their columns.
var tourSorts = map[string]string{
	"price":           "price",
	"ratingsAverage":  "ratings_average",
	"ratingsQuantity": "ratings_quantity",
	"duration":        "duration",
	"maxGroupSize":    "max_group_size",
	"name":            "name",
	"createdAt":       "created_at",
}

// orderBy translates a comma separated sort expression such as
// "-ratingsAverage,price" into an ORDER BY clause. Unknown fields are
// ignored; the default is newest first.
func orderBy(expr string) string {
	var parts []string
	for _, f := range strings.Split(expr, ",") {
		f = strings.TrimSpace(f)
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir, f = "DESC", f[1:]
		}
		if col, ok := tourSorts[f]; ok {
			parts = append(parts, col+" "+dir)
		}
	}
	if len(parts) == 0 {
		return "created_at DESC, id DESC"
	}
	return strings.Join(parts, ", ") + ", id ASC"
}

type tourRecord struct {
	t                        model.Tour
	discount                 sql.NullFloat64
	images, locations, guide []byte
	lat, lng                 sql.NullFloat64
	addr, desc               sql.NullString
}

func scanTour(s rowScanner) (model.Tour, error) {
	var r tourRecord
	t := &r.t
	err := s.Scan(&t.ID, &t.Name, &t.Slug, &t.Price, &r.discount, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
		&t.RatingsAverage, &t.RatingsQuantity, &t.BookedSeats, &t.Summary, &t.Description, &t.ImageCover, &r.images,
		&t.SecretTour, &r.lat, &r.lng, &r.addr, &r.desc, &r.locations, &r.guide, &t.CreatedAt)
	if err != nil {
		return model.Tour{}, err
	}
	if r.discount.Valid {
		d := r.discount.Float64
		t.PriceDiscount = &d
	}
	if r.lat.Valid && r.lng.Valid {
		t.StartLocation = model.Point{
			Type:        "Point",
			Coordinates: [2]float64{r.lng.Float64, r.lat.Float64},
			Address:     r.addr.String,
			Description: r.desc.String,
		}
	}
	if err := unmarshalJSON(r.images, &t.Images); err != nil {
		return model.Tour{}, fmt.Errorf("tour %d images: %w", t.ID, err)
	}
	if err := unmarshalJSON(r.locations, &t.Locations); err != nil {
		return model.Tour{}, fmt.Errorf("tour %d locations: %w", t.ID, err)
	}
	if err := unmarshalJSON(r.guide, &t.Guides); err != nil {
		return model.Tour{}, fmt.Errorf("tour %d guides: %w", t.ID, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return *t, nil
}

func unmarshalJSON(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// tourArgs returns the writable column values of t in tourWriteColumns order.
func tourArgs(t *model.Tour) ([]interface{}, error) {
	images, err := marshalJSON(nonNil(t.Images))
	if err != nil {
		return nil, err
	}
	locations, err := marshalJSON(nonNilLocations(t.Locations))
	if err != nil {
		return nil, err
	}
	guides, err := marshalJSON(nonNilIDs(t.Guides))
	if err != nil {
		return nil, err
	}
	var lat, lng, addr, desc interface{}
	if t.StartLocation.Type != "" {
		lat, lng = t.StartLocation.Lat(), t.StartLocation.Lng()
		addr, desc = t.StartLocation.Address, t.StartLocation.Description
	}
	return []interface{}{
		t.Name, t.Slug, t.Price, t.PriceDiscount, t.Duration, t.MaxGroupSize, t.Difficulty,
		t.Summary, t.Description, t.ImageCover, images, t.SecretTour,
		lat, lng, addr, desc, locations, guides,
	}, nil
}

const tourWriteColumns = `name, slug, price, price_discount, duration, max_group_size, difficulty,
	summary, description, image_cover, images, secret_tour,
	start_lat, start_lng, start_address, start_description, locations, guides`

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilLocations(s []model.Location) []model.Location {
	if s == nil {
		return []model.Location{}
	}
	return s
}

func nonNilIDs(s []uint64) []uint64 {
	if s == nil {
		return []uint64{}
	}
	return s
}

// CreateTx inserts t with zeroed derived counters and its start dates. The
// generated ID is written back to t. ErrDuplicate means the name is taken.
func (r *TourRepo) CreateTx(ctx context.Context, tx DBTX, t *model.Tour) error {
	args, err := tourArgs(t)
	if err != nil {
		return err
	}
	q := "INSERT INTO tours (" + tourWriteColumns + ") VALUES (?" + strings.Repeat(",?", len(args)-1) + ")"
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return insertStartDates(ctx, tx, t.ID, t.StartDates)
}

// UpdateTx overwrites the writable columns of t and replaces its start
// dates. Derived counters are left untouched.
func (r *TourRepo) UpdateTx(ctx context.Context, tx DBTX, t *model.Tour) error {
	args, err := tourArgs(t)
	if err != nil {
		return err
	}
	cols := strings.Split(tourWriteColumns, ",")
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = strings.TrimSpace(c) + " = ?"
	}
	args = append(args, t.ID)
	q := "UPDATE tours SET " + strings.Join(sets, ", ") + " WHERE id = ? AND " + publicTour
	if err := expectOne(tx.ExecContext(ctx, q, args...)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tour_start_dates WHERE tour_id = ?", t.ID); err != nil {
		return err
	}
	return insertStartDates(ctx, tx, t.ID, t.StartDates)
}

func insertStartDates(ctx context.Context, tx DBTX, tourID uint64, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	q := "INSERT INTO tour_start_dates (tour_id, starts_at) VALUES "
	args := make([]interface{}, 0, len(dates)*2)
	for i, d := range dates {
		if i > 0 {
			q += ","
		}
		q += "(?, ?)"
		args = append(args, tourID, d.UTC())
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// Delete removes a tour. Bookings, reviews and start dates cascade.
func (r *TourRepo) Delete(ctx context.Context, id uint64) error {
	return expectOne(r.DB.ExecContext(ctx, "DELETE FROM tours WHERE id = ? AND "+publicTour, id))
}

// GetByID fetches a public tour with its start dates.
func (r *TourRepo) GetByID(ctx context.Context, id uint64) (model.Tour, error) {
	return r.getByID(ctx, r.DB, id, "id = ? AND "+publicTour)
}

// LockTx fetches a tour, secret or not, and holds its row lock until tx
// ends. It serializes concurrent writers to the tour's derived counters.
func (r *TourRepo) LockTx(ctx context.Context, tx DBTX, id uint64) (model.Tour, error) {
	return r.getByID(ctx, tx, id, "id = ? FOR UPDATE")
}

func (r *TourRepo) getByID(ctx context.Context, q DBTX, id uint64, where string) (model.Tour, error) {
	t, err := scanTour(q.QueryRowContext(ctx, "SELECT "+tourColumns+" FROM tours WHERE "+where, id))
	if err != nil {
		return model.Tour{}, mapErr(err)
	}
	tours := []model.Tour{t}
	if err := attachStartDates(ctx, q, tours); err != nil {
		return model.Tour{}, err
	}
	return tours[0], nil
}

// List returns one page of public tours.
func (r *TourRepo) List(ctx context.Context, lq TourListQuery) ([]model.Tour, error) {
	where := publicTour
	args := []interface{}{}
	if lq.Difficulty != "" {
		where += " AND difficulty = ?"
		args = append(args, lq.Difficulty)
	}
	args = append(args, lq.Limit, lq.Offset)
	q := "SELECT " + tourColumns + " FROM tours WHERE " + where +
		" ORDER BY " + orderBy(lq.Sort) + " LIMIT ? OFFSET ?"
	return r.queryTours(ctx, q, args...)
}

// Within returns public tours whose start location lies within radius
// meters of (lat, lng).
func (r *TourRepo) Within(ctx context.Context, lat, lng, radiusMeters float64) ([]model.Tour, error) {
	q := "SELECT " + tourColumns + " FROM tours WHERE " + publicTour +
		` AND start_lat IS NOT NULL
		  AND ST_Distance_Sphere(POINT(start_lng, start_lat), POINT(?, ?)) <= ?
		ORDER BY id`
	return r.queryTours(ctx, q, lng, lat, radiusMeters)
}

// Distances returns every public tour with a start location and its
// distance from (lat, lng) in meters scaled by multiplier, nearest first.
func (r *TourRepo) Distances(ctx context.Context, lat, lng, multiplier float64) ([]model.TourDistance, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, ST_Distance_Sphere(POINT(start_lng, start_lat), POINT(?, ?)) * ? AS distance
		 FROM tours WHERE `+publicTour+` AND start_lat IS NOT NULL
		 ORDER BY distance ASC`, lng, lat, multiplier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TourDistance{}
	for rows.Next() {
		var d model.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats groups well rated public tours by difficulty, cheapest group first.
func (r *TourRepo) Stats(ctx context.Context, minRating float64) ([]model.TourStat, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT UPPER(difficulty) AS diff, COUNT(*), COALESCE(SUM(ratings_quantity), 0),
		        AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		 FROM tours WHERE `+publicTour+` AND ratings_average >= ?
		 GROUP BY diff ORDER BY AVG(price) ASC`, minRating)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TourStat{}
	for rows.Next() {
		var s model.TourStat
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]model.MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT MONTH(d.starts_at), t.name
		 FROM tour_start_dates d JOIN tours t ON t.id = d.tour_id
		 WHERE t.`+publicTour+` AND d.starts_at >= ? AND d.starts_at < ?
		 ORDER BY d.starts_at, t.name`, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byMonth := map[int]*model.MonthPlan{}
	for rows.Next() {
		var (
			month int
			name  string
		)
		if err := rows.Scan(&month, &name); err != nil {
			return nil, err
		}
		p, ok := byMonth[month]
		if !ok {
			p = &model.MonthPlan{Month: month}
			byMonth[month] = p
		}
		p.NumTourStarts++
		p.Tours = append(p.Tours, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.MonthPlan, 0, len(byMonth))
	for _, p := range byMonth {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumTourStarts != out[j].NumTourStarts {
			return out[i].NumTourStarts > out[j].NumTourStarts
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// ReserveSeatsTx adds n to booked_seats only if the result stays within
// max_group_size. It is the single atomic check-and-increment behind the
// capacity rule; ErrCapacity means no seats were taken.
func (r *TourRepo) ReserveSeatsTx(ctx context.Context, tx DBTX, tourID uint64, n int) error {
	err := expectOne(tx.ExecContext(ctx,
		`UPDATE tours SET booked_seats = booked_seats + ?
		 WHERE id = ? AND booked_seats + ? <= max_group_size`, n, tourID, n))
	if errors.Is(err, ErrNotFound) {
		return ErrCapacity
	}
	return err
}

// ReleaseSeatsTx subtracts n from booked_seats, never going below zero.
func (r *TourRepo) ReleaseSeatsTx(ctx context.Context, tx DBTX, tourID uint64, n int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE tours SET booked_seats = GREATEST(CAST(booked_seats AS SIGNED) - ?, 0) WHERE id = ?", n, tourID)
	return err
}

// SetRatingsTx stores a recomputed rating aggregate.
func (r *TourRepo) SetRatingsTx(ctx context.Context, tx DBTX, tourID uint64, quantity int, average float64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE tours SET ratings_quantity = ?, ratings_average = ? WHERE id = ?", quantity, average, tourID)
	return err
}

func (r *TourRepo) queryTours(ctx context.Context, q string, args ...interface{}) ([]model.Tour, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	tours := []model.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tours = append(tours, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachStartDates(ctx, r.DB, tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// attachStartDates loads tour_start_dates for all tours in one query.
func attachStartDates(ctx context.Context, q DBTX, tours []model.Tour) error {
	if len(tours) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(tours))
	args := make([]interface{}, len(tours))
	for i := range tours {
		idx[tours[i].ID] = i
		args[i] = tours[i].ID
		tours[i].StartDates = []time.Time{}
	}
	rows, err := q.QueryContext(ctx,
		"SELECT tour_id, starts_at FROM tour_start_dates WHERE tour_id IN (?"+
			strings.Repeat(",?", len(tours)-1)+") ORDER BY starts_at", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uint64
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return err
		}
		i := idx[id]
		tours[i].StartDates = append(tours[i].StartDates, at.UTC())
	}
	return rows.Err()
}
