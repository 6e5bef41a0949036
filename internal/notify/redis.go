// Package notify announces committed writes to subscribers.
//
// Notifications are a convenience for consumers that would otherwise poll
// MAX(events.id). They are sent after commit, at most once per write, and
// carry identifiers only; the event row in the database stays authoritative.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "dbgateway:events"

// Notice identifies one committed event.
type Notice struct {
	EventID int64  `json:"event_id"`
	Source  string `json:"source"`
	Type    string `json:"type"`
	TaskID  string `json:"task_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// Publisher sends notices to a Redis pub/sub channel.
// It is safe for concurrent use.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a publisher on the given connection options.
func NewPublisher(opts *redis.Options, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		rdb:     redis.NewClient(opts),
		channel: channel,
	}
}

// Dial parses a redis:// URL and creates a publisher for it.
func Dial(redisURL, channel string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewPublisher(opts, channel), nil
}

// Channel returns the channel notices are published on.
func (p *Publisher) Channel() string {
	return p.channel
}

// Notify publishes n as JSON.
func (p *Publisher) Notify(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
