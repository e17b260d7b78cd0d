package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

// ContactExport is everything stored about one contact. Message bodies are
// not included.
type ContactExport struct {
	Contact    domain.Contact    `json:"contact"`
	Tags       []domain.Tag      `json:"tags"`
	Activity   []domain.Activity `json:"activity"`
	Messages   []domain.Message  `json:"messages_received"`
	ExportedAt time.Time         `json:"exported_at"`
}

// maxNameLen caps self-service display names.
const maxNameLen = 200

// ExportContact gathers the records of the contact that owns key and
// appends an export activity. The activity is written after the read, so an
// export never lists itself.
func (e *Engine) ExportContact(ctx context.Context, key string) Result {
	key = strings.TrimSpace(key)
	if key == "" {
		return Rejected(ErrNotFound, "Contact not found")
	}
	return e.inTx(ctx, "contact_export", func(tx Tx) (Result, error) {
		c, err := tx.FindContactByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Rejected(ErrNotFound, "Contact not found"), nil
		}
		if err != nil {
			return Result{}, err
		}

		out := &ContactExport{Contact: *c, ExportedAt: time.Now().UTC()}
		if out.Tags, err = tx.ContactTags(ctx, c.ID); err != nil {
			return Result{}, err
		}
		if out.Activity, err = tx.ContactActivity(ctx, c.ID); err != nil {
			return Result{}, err
		}
		if out.Messages, err = tx.MessagesTo(ctx, c.Email); err != nil {
			return Result{}, err
		}

		if err := tx.RecordActivity(ctx, &domain.Activity{
			ContactID:   c.ID,
			Key:         domain.ActivityExport,
			Description: "Data export requested",
			CreatedAt:   out.ExportedAt,
		}); err != nil {
			return Result{}, err
		}
		return OK(out, 0, 0, 0), nil
	})
}

// UpdateContactName lets the contact that owns key correct its display
// name. The address cannot be changed this way. Setting the current name
// succeeds with Updated 0 and records nothing.
func (e *Engine) UpdateContactName(ctx context.Context, key, name string) Result {
	key = strings.TrimSpace(key)
	name = strings.TrimSpace(name)
	if key == "" {
		return Rejected(ErrNotFound, "Contact not found")
	}
	if name == "" || len(name) > maxNameLen {
		return Rejected(ErrInvalid, "a name of 1 to 200 characters is required")
	}

	return e.inTx(ctx, "contact_update", func(tx Tx) (Result, error) {
		c, err := tx.FindContactByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Rejected(ErrNotFound, "Contact not found"), nil
		}
		if err != nil {
			return Result{}, err
		}

		changed, err := tx.SetContactName(ctx, c.ID, name)
		if err != nil {
			return Result{}, err
		}
		if !changed {
			return OK(nil, 0, 0, 0), nil
		}
		if err := tx.RecordActivity(ctx, &domain.Activity{
			ContactID:   c.ID,
			Key:         domain.ActivityUpdate,
			Description: "Name updated",
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return Result{}, err
		}
		return OK(nil, 0, 1, 0), nil
	})
}
