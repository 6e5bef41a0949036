package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbgateway/internal/apperr"
)

func TestCompilePatch_Deterministic(t *testing.T) {
	stmt, err := CompilePatch("tasks", "id", "t-1", map[string]any{
		"worker_id":   "w-1",
		"status":      "accepted",
		"accepted_at": "2026-01-02T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE tasks SET accepted_at = ?, status = ?, worker_id = ? WHERE id = ?", stmt.SQL)
	assert.Equal(t, []any{"2026-01-02T00:00:00Z", "accepted", "w-1", "t-1"}, stmt.Args)
	assert.Equal(t, []string{"accepted_at", "status", "worker_id"}, stmt.Columns)
}

func TestCompilePatch_RejectsUnknownColumnWholesale(t *testing.T) {
	_, err := CompilePatch("tasks", "id", "t-1", map[string]any{
		"status":                  "accepted",
		"reward":                  1,
		"status = 'x'; DROP --":   "y",
	})

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeColumnNotAllowed, ae.Code)
	assert.Equal(t, []string{"reward", "status = 'x'; DROP --"}, ae.Details["columns"])
}

func TestCompilePatch_Empty(t *testing.T) {
	_, err := CompilePatch("tasks", "id", "t-1", map[string]any{})
	assert.True(t, apperr.HasCode(err, apperr.CodeEmptyUpdate))
}

func TestCompilePatch_TableWithoutAllowList(t *testing.T) {
	_, err := CompilePatch("accounts", "id", "a-1", map[string]any{"balance": 5})
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
}

func TestApplyPatch(t *testing.T) {
	s := createTestStore(t)
	seedAgent(t, s, "poster", "pk-poster")
	require.NoError(t, execInUnit(s, `INSERT INTO tasks (id, poster_id, title, spec, reward, created_at) VALUES ('t-1', 'poster', 'x', 'y', 5, 't')`))

	stmt, err := CompilePatch("tasks", "id", "t-1", map[string]any{"status": "cancelled", "cancelled_at": "now"})
	require.NoError(t, err)

	var n int64
	err = s.Execute(context.Background(), func(ctx context.Context, tx *Tx) error {
		var err error
		n, err = tx.ApplyPatch(ctx, stmt)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var status string
	require.NoError(t, s.db.QueryRow("SELECT status FROM tasks WHERE id = 't-1'").Scan(&status))
	assert.Equal(t, "cancelled", status)

	missing, err := CompilePatch("tasks", "id", "t-404", map[string]any{"status": "cancelled"})
	require.NoError(t, err)
	err = s.Execute(context.Background(), func(ctx context.Context, tx *Tx) error {
		var err error
		n, err = tx.ApplyPatch(ctx, missing)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
