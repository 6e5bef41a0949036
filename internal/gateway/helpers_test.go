package gateway

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dbgateway/internal/notify"
	"github.com/roach88/dbgateway/internal/store"
	"github.com/roach88/dbgateway/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	gw    *Gateway
	store *store.Store
	clock *testutil.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewFakeClock(epoch)
	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{gw: New(s, opts...), store: s, clock: clock}
}

func ev(typ string) *store.Event {
	return &store.Event{
		Source:    "test",
		Type:      typ,
		Timestamp: "2026-03-01T12:00:00Z",
		Summary:   typ,
		Payload:   `{"n":1}`,
	}
}

func i64(v int64) *int64 { return &v }

func (f *fixture) agent(t *testing.T, id string) {
	t.Helper()
	_, err := f.gw.RegisterAgent(context.Background(), RegisterAgentRequest{
		AgentID: id, Name: "agent " + id, PublicKey: "pk-" + id, Event: ev("agent.registered"),
	})
	require.NoError(t, err)
}

func (f *fixture) account(t *testing.T, id string, balance int64) {
	t.Helper()
	f.agent(t, id)
	_, err := f.gw.CreateAccount(context.Background(), CreateAccountRequest{
		AccountID: id, InitialBalance: i64(balance), Event: ev("account.created"),
	})
	require.NoError(t, err)
}

func (f *fixture) task(t *testing.T, id, poster string) {
	t.Helper()
	_, err := f.gw.CreateTask(context.Background(), CreateTaskRequest{
		TaskID: id, PosterID: poster, Title: "title", Spec: "spec", Reward: i64(10), Event: ev("task.created"),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	var b int64
	require.NoError(t, f.store.DB().QueryRow("SELECT balance FROM accounts WHERE id = ?", id).Scan(&b))
	return b
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func (f *fixture) maxEventID(t *testing.T) int64 {
	t.Helper()
	var id int64
	require.NoError(t, f.store.DB().QueryRow("SELECT COALESCE(MAX(id), 0) FROM events").Scan(&id))
	return id
}

// failEvents makes every event insert abort.
func (f *fixture) failEvents(t *testing.T) {
	t.Helper()
	_, err := f.store.DB().Exec(`CREATE TRIGGER fail_events BEFORE INSERT ON events BEGIN SELECT RAISE(ABORT, 'forced'); END`)
	require.NoError(t, err)
}

// recordingNotifier captures notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

func (r *recordingNotifier) all() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notice(nil), r.notices...)
}
