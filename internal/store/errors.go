package store

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/catalog"
)

const (
	uniqueFailedPrefix = "UNIQUE constraint failed: "
	checkFailedPrefix  = "CHECK constraint failed: "
)

// translate maps any error raised inside a unit to the public taxonomy.
// Errors that are already *apperr.Error pass through untouched. Raw driver
// text is logged here and never returned to callers.
func (s *Store) translate(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	out := Translate(err)
	if out.Kind == apperr.KindInternal || out.Code == apperr.CodeConstraintViolation {
		s.log.Error("write unit failed", "code", out.Code, "error", err)
	} else {
		s.log.Debug("write unit rejected", "code", out.Code, "error", err)
	}
	return out
}

// Translate converts a database error into an *apperr.Error using the
// constraint catalog.
//
// Mapping:
//   - primary key or unique index violation: the table's catalog code
//   - foreign key violation: FOREIGN_KEY_VIOLATION
//   - check violation on an amount column: INVALID_AMOUNT, otherwise INVALID_VALUE
//   - busy or locked: DATABASE_BUSY
//   - anything else: DATABASE_ERROR
func Translate(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var se sqlite3.Error
	if !errors.As(err, &se) {
		return apperr.Database(err)
	}

	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return apperr.Busy(err)
	case sqlite3.ErrConstraint:
		return translateConstraint(se, err)
	default:
		return apperr.Database(err)
	}
}

func translateConstraint(se sqlite3.Error, cause error) *apperr.Error {
	msg := se.Error()

	switch se.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		table, columns, ok := parseUniqueFailure(msg)
		if ok {
			if t, found := catalog.Lookup(table); found {
				if code, matched := t.UniqueCode(columns); matched {
					return apperr.Conflict(code, existsMessage(code)).
						WithDetail("table", table).
						Wrap(cause)
				}
			}
		}
		return apperr.Conflict(apperr.CodeConstraintViolation, "uniqueness constraint violated").Wrap(cause)

	case sqlite3.ErrConstraintForeignKey:
		return apperr.Conflict(apperr.CodeForeignKeyViolation, "referenced record does not exist").Wrap(cause)

	case sqlite3.ErrConstraintCheck:
		name := strings.TrimSpace(strings.TrimPrefix(msg, checkFailedPrefix))
		if t, c, ok := catalog.FindCheck(name); ok {
			return apperr.Conflict(c.Code(), checkMessage(c)).
				WithDetail("table", t.Name).
				WithDetail("column", c.Column).
				Wrap(cause)
		}
		return apperr.Conflict(apperr.CodeInvalidValue, "value violates a constraint").Wrap(cause)

	default:
		return apperr.Conflict(apperr.CodeConstraintViolation, "constraint violated").Wrap(cause)
	}
}

// parseUniqueFailure splits "UNIQUE constraint failed: t.a, t.b" into the
// table name and its columns.
func parseUniqueFailure(msg string) (string, []string, bool) {
	if !strings.HasPrefix(msg, uniqueFailedPrefix) {
		return "", nil, false
	}
	var table string
	var columns []string
	for _, part := range strings.Split(strings.TrimPrefix(msg, uniqueFailedPrefix), ",") {
		t, col, ok := strings.Cut(strings.TrimSpace(part), ".")
		if !ok {
			return "", nil, false
		}
		if table != "" && t != table {
			return "", nil, false
		}
		table = t
		columns = append(columns, col)
	}
	return table, columns, table != ""
}

func existsMessage(code apperr.Code) string {
	switch code {
	case apperr.CodeEscrowAlreadyLocked:
		return "escrow already locked"
	case apperr.CodeEscrowAlreadyResolved:
		return "escrow already resolved"
	case apperr.CodeReferenceConflict:
		return "reference already used with a different request"
	case apperr.CodePublicKeyExists:
		return "public key already registered"
	default:
		return "record already exists"
	}
}

func checkMessage(c catalog.Check) string {
	if c.Amount {
		return "amount is out of range"
	}
	return "value is out of range"
}
