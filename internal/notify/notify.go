// Package notify publishes the out-of-band "broadcast queued" signal that
// delivery workers listen for. The payload is only the broadcast slug;
// workers re-query pending messages rather than trusting it.
package notify

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the channel delivery workers subscribe to.
const DefaultChannel = "broadcasts"

// Publisher sends a broadcast slug to delivery workers. Delivery is
// at-least-once at best; callers treat a failure as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, slug string) error
}

// NewPublisher picks the best available backend. If redisClient is non-nil,
// uses Redis PUBLISH. Otherwise falls back to PostgreSQL NOTIFY on db.
func NewPublisher(redisClient *redis.Client, db *sql.DB, channel string) Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if redisClient != nil {
		return NewRedisPublisher(redisClient, channel)
	}
	return NewPGPublisher(db, channel)
}

// Nop discards every signal. Used when no backend is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string) error { return nil }
