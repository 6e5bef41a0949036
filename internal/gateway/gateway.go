package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/dbgateway/internal/notify"
	"github.com/roach88/dbgateway/internal/store"
)

// Clock supplies entity creation timestamps.
type Clock interface {
	Now() time.Time
}

// Notifier receives a notice after each committed, non-replayed write.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Gateway executes write operations against a store.
// It is safe for concurrent use; the store serializes units.
type Gateway struct {
	store    *store.Store
	clock    Clock
	notifier Notifier
	log      *slog.Logger
	started  time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the wall clock (for tests).
func WithClock(c Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

// WithNotifier enables post-commit notifications.
func WithNotifier(n Notifier) Option {
	return func(g *Gateway) {
		g.notifier = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// New creates a gateway over s.
func New(s *store.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store: s,
		clock: systemClock{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.started = g.clock.Now()
	return g
}

// WriteResult is embedded in every operation's response.
type WriteResult struct {
	// EventID is the id of the event row written with the mutation.
	// Zero (omitted) on replay.
	EventID int64 `json:"event_id,omitempty"`

	// Replayed is true when an identical earlier write was found.
	Replayed bool `json:"replayed,omitempty"`
}

// WasReplayed reports whether the write matched an earlier identical one.
func (r WriteResult) WasReplayed() bool {
	return r.Replayed
}

// mutation is the domain part of a unit. It reports replay=true when the
// resolver matched an identical stored row, in which case nothing was
// written and no event follows.
type mutation func(ctx context.Context, tx *store.Tx, now string) (replay bool, err error)

// write runs m and the event insert as one unit, then notifies.
func (g *Gateway) write(ctx context.Context, op string, ev store.Event, m mutation) (WriteResult, error) {
	var res WriteResult
	now := g.timestamp()

	err := g.store.Execute(ctx, func(ctx context.Context, tx *store.Tx) error {
		replay, err := m(ctx, tx, now)
		if err != nil {
			return err
		}
		if replay {
			res.Replayed = true
			return nil
		}
		id, err := tx.InsertEvent(ctx, ev)
		if err != nil {
			return err
		}
		res.EventID = id
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}

	if res.Replayed {
		g.log.Debug("write replayed", "op", op)
		return res, nil
	}

	g.log.Debug("write committed", "op", op, "event_id", res.EventID)
	g.publish(ctx, res.EventID, ev)
	return res, nil
}

// publish sends a notice for a committed event. The write has already
// committed, so failures are only logged.
func (g *Gateway) publish(ctx context.Context, eventID int64, ev store.Event) {
	if g.notifier == nil {
		return
	}
	n := notify.Notice{
		EventID: eventID,
		Source:  ev.Source,
		Type:    ev.Type,
		TaskID:  ev.TaskID,
		AgentID: ev.AgentID,
	}
	if err := g.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		g.log.Warn("notify failed", "event_id", eventID, "error", err)
	}
}

func (g *Gateway) timestamp() string {
	return g.clock.Now().UTC().Format(time.RFC3339)
}
