package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{})
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// seedAgent inserts an agent row in its own unit.
func seedAgent(t *testing.T, s *Store, id, publicKey string) {
	t.Helper()
	err := s.Execute(context.Background(), func(ctx context.Context, tx *Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO agents (id, name, public_key, registered_at) VALUES (?, ?, ?, ?)`,
			id, "agent "+id, publicKey, "2026-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)
}

// seedAccount inserts an agent and an account with the given balance.
func seedAccount(t *testing.T, s *Store, id string, balance int64) {
	t.Helper()
	seedAgent(t, s, id, "pk-"+id)
	err := s.Execute(context.Background(), func(ctx context.Context, tx *Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO accounts (id, balance, created_at) VALUES (?, ?, ?)`,
			id, balance, "2026-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)
}

func testEvent() Event {
	return Event{
		Source:    "test",
		Type:      "test.event",
		Timestamp: "2026-01-01T00:00:00Z",
		Summary:   "test event",
		Payload:   `{"k":"v"}`,
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
