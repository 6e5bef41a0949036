package gateway

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// lookup scans one row into dest and reports whether it existed.
func lookup(ctx context.Context, tx *store.Tx, query string, args []any, dest ...any) (bool, error) {
	err := tx.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// resolve decides between proceed, replay and conflict for a write keyed
// on a unique constraint.
//
// stored is the row found under the key, requested is the same projection
// built from the request. The projection holds every caller-supplied field
// of the entity, so equality means the request is a byte-for-byte repeat.
// Gateway-stamped timestamps and the event are not part of it.
//
// Must run inside the unit that performs the insert: the write lock is
// already held, so no other writer can insert under the same key between
// the lookup and the insert.
func resolve[T comparable](found bool, stored, requested T, conflict apperr.Code, message string) (replay bool, err error) {
	if !found {
		return false, nil
	}
	if stored == requested {
		return true, nil
	}
	return false, apperr.Conflict(conflict, message)
}
