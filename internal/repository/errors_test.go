package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestMapErr(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-2' for key 'uq_bookings_user_tour'"}
	other := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}

	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapErr(dup), ErrDuplicate)
	assert.ErrorIs(t, mapErr(fmt.Errorf("insert booking: %w", dup)), ErrDuplicate)
	assert.Equal(t, other, mapErr(other))
}

func TestIsDuplicate_IgnoresMessageText(t *testing.T) {
	assert.False(t, isDuplicate(errors.New("Error 1062: looks like a duplicate")))
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(fakeResult{n: 1}, nil))
	assert.ErrorIs(t, expectOne(fakeResult{n: 0}, nil), ErrNotFound)
	assert.ErrorIs(t, expectOne(nil, sql.ErrNoRows), ErrNotFound)

	boom := errors.New("boom")
	assert.ErrorIs(t, expectOne(fakeResult{err: boom}, nil), boom)
}

func TestOrderBy(t *testing.T) {
	cases := map[string]string{
		"":                      "created_at DESC, id DESC",
		"price":                 "price ASC, id ASC",
		"-ratingsAverage,price": "ratings_average DESC, price ASC, id ASC",
		"password; DROP TABLE":  "created_at DESC, id DESC",
		"-name, bogus":          "name DESC, id ASC",
	}
	for in, want := range cases {
		assert.Equal(t, want, orderBy(in), in)
	}
}
