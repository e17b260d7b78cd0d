package postgres

import (
	"context"
	"fmt"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

func (r queries) InsertEmail(ctx context.Context, e *domain.Email) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO emails (slug, subject, preview, html, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.Slug, e.Subject, e.Preview, e.HTML, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

func (r queries) InsertBroadcast(ctx context.Context, b *domain.Broadcast) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO broadcasts (email_id, status, name, slug, reply_to, send_to_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.EmailID, b.Status, b.Name, b.Slug, b.ReplyTo, b.SendToTag, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert broadcast: %w", err)
	}
	return nil
}

// FanOut queues the messages with one INSERT ... SELECT over the audience.
func (r queries) FanOut(ctx context.Context, b *domain.Broadcast, e *domain.Email) (int, error) {
	where, filterArgs := audienceFilter(b.SendToTag, 7)
	args := append([]any{
		domain.MessageSourceBroadcast, e.Slug, domain.MessagePending,
		b.ReplyTo, e.Subject, e.HTML,
	}, filterArgs...)

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO messages (source, slug, status, send_to, send_from, subject, html, send_at, created_at)
		SELECT $1, $2, $3, c.email, $4, $5, $6, NOW(), NOW()
		FROM contacts c
		WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("fan out: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fan out: %w", err)
	}
	return int(n), nil
}
