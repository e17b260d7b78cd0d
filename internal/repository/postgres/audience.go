package postgres

import (
	"context"
	"fmt"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

const contactColumns = `c.id, c.name, c.email, c.subscribed, c.key, c.created_at`

// audienceFilter returns the WHERE predicate over contacts c for selector.
// Placeholders are numbered from $next. Count, preview and fan-out all use
// it so they always agree on who is in the audience.
func audienceFilter(selector string, next int) (string, []any) {
	if selector == "" || selector == domain.AllSubscribers {
		return `c.subscribed`, nil
	}
	return fmt.Sprintf(`c.subscribed AND EXISTS (
			SELECT 1 FROM tagged tg JOIN tags t ON t.id = tg.tag_id
			WHERE tg.contact_id = c.id AND t.slug = $%d)`, next), []any{selector}
}

func (r queries) CountAudience(ctx context.Context, selector string) (int, error) {
	where, args := audienceFilter(selector, 1)
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts c WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audience: %w", err)
	}
	return n, nil
}

func (r queries) MatchingContacts(ctx context.Context, selector string, limit int, fn func(domain.Contact) error) error {
	where, args := audienceFilter(selector, 1)
	q := `SELECT ` + contactColumns + ` FROM contacts c WHERE ` + where + ` ORDER BY c.id`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("audience: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subscribed, &c.Key, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan contact: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}
