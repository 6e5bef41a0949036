package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/catalog"
)

// UpdateStatement is a compiled partial update.
type UpdateStatement struct {
	SQL     string
	Args    []any
	Columns []string
}

// CompilePatch builds "UPDATE table SET c1 = ?, c2 = ? WHERE key = ?" for the
// supplied values.
//
// CRITICAL: column names come only from the catalog allow-list. Any column off
// the list rejects the whole patch before a statement is built, so a valid
// column in the same request is never applied either.
// CRITICAL: values are always parameterized, never interpolated.
// Columns are emitted in sorted order for deterministic SQL.
func CompilePatch(table, keyColumn string, key any, values map[string]any) (UpdateStatement, error) {
	if len(values) == 0 {
		return UpdateStatement{}, apperr.Shape(apperr.CodeEmptyUpdate, "at least one column must be updated")
	}
	if catalog.PatchableColumns(table) == nil {
		return UpdateStatement{}, apperr.Internal(fmt.Errorf("table %q has no patch allow-list", table))
	}

	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	if bad := catalog.Disallowed(table, columns); len(bad) > 0 {
		return UpdateStatement{}, apperr.Shape(apperr.CodeColumnNotAllowed, "update names columns that may not be written").
			WithDetail("columns", bad)
	}

	assignments := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, c := range columns {
		assignments[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, key)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		table,
		strings.Join(assignments, ", "),
		keyColumn)

	return UpdateStatement{SQL: sql, Args: args, Columns: columns}, nil
}

// ApplyPatch executes a compiled update and returns the rows it changed.
func (t *Tx) ApplyPatch(ctx context.Context, stmt UpdateStatement) (int64, error) {
	return t.ExecAffected(ctx, stmt.SQL, stmt.Args...)
}
