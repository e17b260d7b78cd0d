package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

func (r queries) ContactTags(ctx context.Context, contactID int64) ([]domain.Tag, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, COALESCE(t.description,'')
		FROM tags t
		JOIN tagged tg ON tg.tag_id = t.id
		WHERE tg.contact_id = $1
		ORDER BY t.slug
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("contact tags: %w", err)
	}
	defer rows.Close()

	var out []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r queries) ContactActivity(ctx context.Context, contactID int64) ([]domain.Activity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, contact_id, key, description, created_at
		FROM activity
		WHERE contact_id = $1
		ORDER BY created_at DESC, id DESC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("contact activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.ContactID, &a.Key, &a.Description, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MessagesTo lists messages addressed to email, newest first. Bodies are
// left out.
func (r queries) MessagesTo(ctx context.Context, email string) ([]domain.Message, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, source, slug, status, send_to, send_from, subject, send_at, sent_at, created_at
		FROM messages
		WHERE send_to = $1
		ORDER BY created_at DESC, id DESC
	`, domain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("messages to contact: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m      domain.Message
			sentAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Source, &m.Slug, &m.Status, &m.SendTo, &m.SendFrom,
			&m.Subject, &m.SendAt, &sentAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if sentAt.Valid {
			m.SentAt = &sentAt.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
