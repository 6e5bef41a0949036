package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbgateway/internal/catalog"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, path, s.Path())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, Options{})
		require.NoError(t, err, "Open() iteration %d failed", i)
		s.Close()
	}

	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	for _, tbl := range catalog.Tables() {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			tbl.Name,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", tbl.Name)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_CustomBusyTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{BusyTimeout: 1500 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("busy_timeout", "1500"))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{})
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	s.Close()

	_, err = Open(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

// The catalog drives error translation, so it must describe the schema the
// store actually creates.
func TestCatalogMatchesSchema(t *testing.T) {
	s := createTestStore(t)

	var live []string
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		live = append(live, name)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	var catalogued []string
	for _, tbl := range catalog.Tables() {
		catalogued = append(catalogued, tbl.Name)
	}
	assert.ElementsMatch(t, live, catalogued)

	for _, tbl := range catalog.Tables() {
		t.Run(tbl.Name, func(t *testing.T) {
			for _, idx := range tbl.Unique {
				var unique, partial int
				err := s.db.QueryRow(
					"SELECT il.\"unique\", il.partial FROM pragma_index_list(?) AS il WHERE il.name = ?",
					tbl.Name, idx.Name,
				).Scan(&unique, &partial)
				require.NoError(t, err, "index %s missing", idx.Name)
				assert.Equal(t, 1, unique, "index %s not unique", idx.Name)
				assert.Equal(t, idx.Where != "", partial == 1, "index %s partial mismatch", idx.Name)

				var cols []string
				irows, err := s.db.Query("SELECT name FROM pragma_index_info(?) ORDER BY seqno", idx.Name)
				require.NoError(t, err)
				for irows.Next() {
					var c string
					require.NoError(t, irows.Scan(&c))
					cols = append(cols, c)
				}
				irows.Close()
				assert.Equal(t, idx.Columns, cols)
			}

			var fks []catalog.ForeignKey
			frows, err := s.db.Query(`SELECT "table", "from", "to" FROM pragma_foreign_key_list(?)`, tbl.Name)
			require.NoError(t, err)
			for frows.Next() {
				var fk catalog.ForeignKey
				require.NoError(t, frows.Scan(&fk.RefTable, &fk.Column, &fk.RefColumn))
				fks = append(fks, fk)
			}
			frows.Close()
			assert.ElementsMatch(t, tbl.ForeignKeys, fks)

			var ddl string
			require.NoError(t, s.db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name=?", tbl.Name).Scan(&ddl))
			for _, c := range tbl.Checks {
				assert.True(t, strings.Contains(ddl, "CONSTRAINT "+c.Name+" CHECK ("+c.Expr+")"),
					"check %s not found in DDL", c.Name)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.LatestEventID)
	assert.Greater(t, st.DatabaseSizeBytes, int64(0))

	var ids []int64
	for i := 0; i < 3; i++ {
		err := s.Execute(ctx, func(ctx context.Context, tx *Tx) error {
			id, err := tx.InsertEvent(ctx, testEvent())
			ids = append(ids, id)
			return err
		})
		require.NoError(t, err)
	}

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], st.LatestEventID)
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestInsertEvent_StoresVerbatim(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := testEvent()
	ev.Payload = `{"b": 2,  "a":[1, "x"]}` // deliberately non-canonical
	ev.AgentID = "a-1"

	var id int64
	err := s.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		id, err = tx.InsertEvent(ctx, ev)
		return err
	})
	require.NoError(t, err)

	var payload, agentID string
	var taskID *string
	err = s.db.QueryRow("SELECT payload, agent_id, task_id FROM events WHERE id = ?", id).Scan(&payload, &agentID, &taskID)
	require.NoError(t, err)
	assert.Equal(t, ev.Payload, payload)
	assert.Equal(t, "a-1", agentID)
	assert.Nil(t, taskID, "empty task id must be stored as NULL")
}
