package store

import (
	"context"
	"fmt"
	"os"
)

// Stats are the health counters of the database.
type Stats struct {
	DatabaseSizeBytes int64 `json:"database_size_bytes"`
	LatestEventID     int64 `json:"latest_event_id"`
}

// Stats reads the database file size and the highest assigned event id.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	info, err := os.Stat(s.path)
	if err != nil {
		return Stats{}, fmt.Errorf("stat database: %w", err)
	}
	st.DatabaseSizeBytes = info.Size()

	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM events").Scan(&st.LatestEventID); err != nil {
		return Stats{}, fmt.Errorf("query latest event: %w", err)
	}

	return st, nil
}
