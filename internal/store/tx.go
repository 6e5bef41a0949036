package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/dbgateway/internal/apperr"
)

// Tx is the statement surface of one write unit.
// It is only valid inside the function passed to Execute.
type Tx struct {
	tx *sql.Tx
}

// UnitFunc is the body of a write unit. The context it receives is detached
// from the caller's cancellation.
type UnitFunc func(ctx context.Context, tx *Tx) error

// Execute runs fn as one atomic write unit.
//
// Unit lifecycle:
//  1. Claim the in-process write slot (bounded by the busy timeout and ctx)
//  2. BEGIN IMMEDIATE, claiming SQLite's write lock before any statement
//  3. Run fn
//  4. On success: COMMIT
//  5. On error or panic: ROLLBACK; a rollback failure never masks the cause
//
// Once step 2 succeeds the unit is no longer cancellable: it always ends in
// exactly one commit or one rollback. Errors are translated to *apperr.Error.
func (s *Store) Execute(ctx context.Context, fn UnitFunc) (err error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	unitCtx := context.WithoutCancel(ctx)

	sqlTx, err := s.db.BeginTx(unitCtx, nil)
	if err != nil {
		return s.translate(fmt.Errorf("begin: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			s.rollback(sqlTx)
		}
	}()

	// Handle panics: rollback happens via the committed=false check above
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err := fn(unitCtx, &Tx{tx: sqlTx}); err != nil {
		return s.translate(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return s.translate(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// acquire claims the write slot. The wait is bounded by the busy timeout so
// a stuck unit surfaces as DATABASE_BUSY instead of an indefinite queue.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	release := func() { <-s.writeSlot }

	select {
	case s.writeSlot <- struct{}{}:
		return release, nil
	default:
	}

	timer := time.NewTimer(s.busyTimeout)
	defer timer.Stop()

	select {
	case s.writeSlot <- struct{}{}:
		return release, nil
	case <-timer.C:
		return nil, apperr.Busy(fmt.Errorf("write slot wait exceeded %s", s.busyTimeout))
	case <-ctx.Done():
		return nil, apperr.Busy(ctx.Err())
	}
}

func (s *Store) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		s.log.Debug("rollback failed", "error", err)
	}
}

// Exec executes a statement inside the unit.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// ExecAffected executes a statement and returns the number of rows it changed.
func (t *Tx) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// QueryRow runs a single-row query inside the unit.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Exists reports whether query returns at least one row.
func (t *Tx) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
