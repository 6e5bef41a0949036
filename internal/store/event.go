package store

import (
	"context"
	"fmt"
)

// Event is the caller-constructed audit record persisted with every
// mutation. The store neither generates nor interprets any of its fields;
// Payload in particular is carried through byte for byte.
type Event struct {
	Source    string `json:"source"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	TaskID    string `json:"task_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Summary   string `json:"summary"`
	Payload   string `json:"payload"`
}

// InsertEvent appends ev to the event log and returns its assigned id.
// Empty TaskID and AgentID are stored as NULL.
func (t *Tx) InsertEvent(ctx context.Context, ev Event) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO events
		(event_source, event_type, timestamp, task_id, agent_id, summary, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Source,
		ev.Type,
		ev.Timestamp,
		nullable(ev.TaskID),
		nullable(ev.AgentID),
		ev.Summary,
		ev.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert event: last insert id: %w", err)
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
