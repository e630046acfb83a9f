// Package repository holds the MySQL data access layer. Repositories
// return the sentinel errors below so services can translate them into
// typed application errors without inspecting driver details.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or is hidden by a
// read predicate (inactive users, secret tours).
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a UNIQUE key.
var ErrDuplicate = errors.New("duplicate")

// ErrCapacity is returned when a conditional seat reservation matched no
// row because the tour would be overbooked.
var ErrCapacity = errors.New("capacity exceeded")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	}
	return err
}

// expectOne turns a zero rows-affected result into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
