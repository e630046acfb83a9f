package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so that the same query code
// runs inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner opens transactions for operations whose precondition checks and
// writes must be indivisible.
type TxRunner struct{ DB *sql.DB }

func NewTxRunner(db *sql.DB) *TxRunner { return &TxRunner{DB: db} }

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and is rolled back otherwise, including when fn panics.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
