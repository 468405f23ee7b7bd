package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanix-pos/scanix/internal/shared"
)

// ErrTxConflict is returned when the database aborts a transaction because of
// a concurrent writer (serialization failure, deadlock or lock timeout).
var ErrTxConflict = fmt.Errorf("platform/db: concurrent update, retry the request: %w", shared.ErrConflict)

// TxOptions tunes WithTx.
type TxOptions struct {
	// IsoLevel defaults to serializable.
	IsoLevel pgx.TxIsoLevel
	// LockTimeout bounds how long a statement waits for a row lock. Zero keeps
	// the server default.
	LockTimeout time.Duration
}

// WithTx executes fn inside a transaction. The transaction is rolled back
// when fn returns an error and committed otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(pgx.Tx) error) error {
	if pool == nil {
		return errors.New("platform/db: pool not initialised")
	}
	iso := opts.IsoLevel
	if iso == "" {
		iso = pgx.Serializable
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if opts.LockTimeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return fmt.Errorf("%w (%s)", ErrTxConflict, pgErr.Code)
	}
	return err
}
