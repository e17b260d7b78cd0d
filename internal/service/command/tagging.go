package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

// BulkTagged is the payload of a successful BulkTag.
type BulkTagged struct {
	Tags         []string `json:"tags"`
	TagsCreated  int      `json:"tags_created"`
	Contacts     int      `json:"contacts"`
	Associations int      `json:"associations"`
}

// BulkTag applies every tag in the comma-separated tags string to every
// address in emails, creating missing tags and contacts on the way. All
// combinations run in one transaction.
//
// Tags are written in slug order and contacts in address order, so
// concurrent BulkTags lock the same rows in the same sequence and wait on
// each other instead of deadlocking.
//
// Inserted counts contacts created and Updated counts contacts that already
// existed; each address counts once per request no matter how many tags it
// receives. Re-applying a tag a contact already has moves neither counter.
func (e *Engine) BulkTag(ctx context.Context, tags string, emails []string) Result {
	names := splitTags(tags)
	if len(names) == 0 {
		return Rejected(ErrInvalid, "at least one tag is required")
	}
	addrs, bad := normalizeEmails(emails)
	if len(bad) > 0 {
		return Rejected(ErrInvalid, fmt.Sprintf("invalid email address: %s", strings.Join(bad, ", ")))
	}
	if len(addrs) == 0 {
		return Rejected(ErrInvalid, "at least one email address is required")
	}

	return e.inTx(ctx, "bulk_tag", func(tx Tx) (Result, error) {
		payload := &BulkTagged{Contacts: len(addrs)}

		tags := make([]*domain.Tag, 0, len(names))
		for _, name := range names {
			tag, created, err := tx.GetOrCreateTag(ctx, name)
			if err != nil {
				return Result{}, fmt.Errorf("tag %q: %w", name, err)
			}
			if created {
				payload.TagsCreated++
			}
			payload.Tags = append(payload.Tags, tag.Slug)
			tags = append(tags, tag)
		}

		inserted, updated := 0, 0
		for _, addr := range addrs {
			contact, created, err := tx.GetOrCreateContact(ctx, addr)
			if err != nil {
				return Result{}, fmt.Errorf("contact: %w", err)
			}
			if created {
				inserted++
			} else {
				updated++
			}

			for _, tag := range tags {
				added, err := tx.TagContact(ctx, contact.ID, tag.ID)
				if err != nil {
					return Result{}, fmt.Errorf("tag contact %d with %q: %w", contact.ID, tag.Slug, err)
				}
				if added {
					payload.Associations++
				}
			}
		}
		return OK(payload, inserted, updated, 0), nil
	})
}

// splitTags splits on commas, trims, drops empties and de-duplicates by slug
// while keeping the first spelling. The result is sorted by slug.
func splitTags(tags string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(tags, ",") {
		name := strings.TrimSpace(part)
		slug := domain.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.Slugify(out[i]) < domain.Slugify(out[j])
	})
	return out
}

// normalizeEmails lowercases, trims and de-duplicates addresses, skipping
// blanks and collecting malformed ones. Valid addresses come back sorted.
func normalizeEmails(emails []string) (addrs, bad []string) {
	seen := map[string]bool{}
	for _, raw := range emails {
		addr := domain.NormalizeEmail(raw)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if !domain.ValidEmail(addr) {
			bad = append(bad, addr)
			continue
		}
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, bad
}
