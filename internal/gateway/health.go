package gateway

import (
	"context"
	"time"
)

// Health is the body of the health endpoint.
type Health struct {
	Status            string  `json:"status"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	DatabaseSizeBytes int64   `json:"database_size_bytes"`
	LatestEventID     int64   `json:"latest_event_id"`
}

// Health reports uptime, database file size and the freshness cursor.
func (g *Gateway) Health(ctx context.Context) (Health, error) {
	st, err := g.store.Stats(ctx)
	if err != nil {
		return Health{}, err
	}
	uptime := g.clock.Now().Sub(g.started).Round(time.Millisecond)
	return Health{
		Status:            "ok",
		UptimeSeconds:     uptime.Seconds(),
		DatabaseSizeBytes: st.DatabaseSizeBytes,
		LatestEventID:     st.LatestEventID,
	}, nil
}
