package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// PGPublisher sends the signal with pg_notify, for deployments without
// Redis. Listeners use LISTEN on the same channel.
type PGPublisher struct {
	db      *sql.DB
	channel string
}

// NewPGPublisher creates a publisher backed by PostgreSQL NOTIFY.
func NewPGPublisher(db *sql.DB, channel string) *PGPublisher {
	return &PGPublisher{db: db, channel: channel}
}

// Publish issues pg_notify outside any transaction, so listeners see it
// immediately. Both channel and payload are bound parameters.
func (p *PGPublisher) Publish(ctx context.Context, slug string) error {
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, slug); err != nil {
		return fmt.Errorf("pg_notify %s: %w", p.channel, err)
	}
	return nil
}
