package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

// Get-or-create uses INSERT ... ON CONFLICT DO NOTHING and re-reads on a
// miss. A plain INSERT that hits the unique index would abort the whole
// transaction.

func (r queries) GetOrCreateContact(ctx context.Context, email string) (*domain.Contact, bool, error) {
	email = domain.NormalizeEmail(email)
	c := &domain.Contact{}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO contacts (name, email, subscribed, key, created_at)
		VALUES ($1, $2, false, $3, NOW())
		ON CONFLICT DO NOTHING
		RETURNING id, name, email, subscribed, key, created_at
	`, domain.DefaultContactName(email), email, uuid.NewString()).Scan(
		&c.ID, &c.Name, &c.Email, &c.Subscribed, &c.Key, &c.CreatedAt,
	)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create contact: %w", err)
	}
	existing, err := r.FindContactByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r queries) GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, bool, error) {
	t := domain.NewTag(name)
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO tags (name, slug, description)
		VALUES ($1, $2, '')
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`, t.Name, t.Slug).Scan(&t.ID)
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create tag: %w", err)
	}

	err = r.q.QueryRowContext(ctx, `
		SELECT id, name, slug, COALESCE(description,'') FROM tags WHERE slug = $1
	`, t.Slug).Scan(&t.ID, &t.Name, &t.Slug, &t.Description)
	if err != nil {
		return nil, false, fmt.Errorf("get tag: %w", err)
	}
	return t, false, nil
}

func (r queries) TagContact(ctx context.Context, contactID, tagID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO tagged (contact_id, tag_id) VALUES ($1, $2)
		ON CONFLICT (contact_id, tag_id) DO NOTHING
	`, contactID, tagID)
	if err != nil {
		return false, fmt.Errorf("tag contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tag contact: %w", err)
	}
	return n == 1, nil
}

func (r queries) InsertContact(ctx context.Context, c *domain.Contact) (bool, error) {
	c.Email = domain.NormalizeEmail(c.Email)
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO contacts (name, email, subscribed, key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, c.Name, c.Email, c.Subscribed, c.Key, c.CreatedAt).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert contact: %w", err)
	}
	return true, nil
}

func (r queries) FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	// Matches the lower(email) unique index.
	return r.findContact(ctx, "lower(c.email) = lower($1)", domain.NormalizeEmail(email))
}

func (r queries) FindContactByKey(ctx context.Context, key string) (*domain.Contact, error) {
	return r.findContact(ctx, "c.key = $1", key)
}

func (r queries) FindContactByID(ctx context.Context, id int64) (*domain.Contact, error) {
	return r.findContact(ctx, "c.id = $1", id)
}

func (r queries) findContact(ctx context.Context, where string, arg any) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts c WHERE `+where, arg,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Subscribed, &c.Key, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, command.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r queries) SetSubscribed(ctx context.Context, contactID int64, subscribed bool) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE contacts SET subscribed = $2
		WHERE id = $1 AND subscribed <> $2
	`, contactID, subscribed)
	if err != nil {
		return false, fmt.Errorf("set subscribed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set subscribed: %w", err)
	}
	return n > 0, nil
}

func (r queries) SetContactName(ctx context.Context, contactID int64, name string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE contacts SET name = $2
		WHERE id = $1 AND name <> $2
	`, contactID, name)
	if err != nil {
		return false, fmt.Errorf("set contact name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set contact name: %w", err)
	}
	return n > 0, nil
}

func (r queries) RecordActivity(ctx context.Context, a *domain.Activity) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO activity (contact_id, key, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.ContactID, a.Key, a.Description, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchContacts matches term anywhere in email or name, case-insensitively.
func (r queries) SearchContacts(ctx context.Context, term string, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts c
		WHERE c.email ILIKE $1 OR c.name ILIKE $1
		ORDER BY c.id
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subscribed, &c.Key, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
