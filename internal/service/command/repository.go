package command

import (
	"context"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

// Audience resolves a segment selector (domain.AllSubscribers or a tag slug)
// to subscribed contacts.
type Audience interface {
	// CountAudience returns how many subscribed contacts match selector.
	CountAudience(ctx context.Context, selector string) (int, error)

	// MatchingContacts streams matching contacts to fn in id order, stopping
	// after limit rows when limit > 0 or at the first error fn returns.
	MatchingContacts(ctx context.Context, selector string, limit int, fn func(domain.Contact) error) error
}

// Directory manages contacts, tags and the association between them.
// Get-or-create methods must converge under concurrent callers: the losing
// side of a unique-constraint race re-reads the winner's row.
type Directory interface {
	// GetOrCreateContact looks an address up case-insensitively and creates
	// an unsubscribed contact with a fresh key when it is missing.
	GetOrCreateContact(ctx context.Context, email string) (c *domain.Contact, created bool, err error)

	// GetOrCreateTag looks a tag up by the slug of name and creates it when
	// it is missing.
	GetOrCreateTag(ctx context.Context, name string) (t *domain.Tag, created bool, err error)

	// TagContact associates contact and tag. Returns false if the pair
	// already existed.
	TagContact(ctx context.Context, contactID, tagID int64) (bool, error)

	// InsertContact stores a new contact and sets its ID. Returns false
	// without error if the address is already taken.
	InsertContact(ctx context.Context, c *domain.Contact) (bool, error)

	// FindContactByEmail, FindContactByKey and FindContactByID return
	// ErrNotFound when nothing matches.
	FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error)
	FindContactByKey(ctx context.Context, key string) (*domain.Contact, error)
	FindContactByID(ctx context.Context, id int64) (*domain.Contact, error)

	// SetSubscribed updates the flag and reports whether it changed.
	SetSubscribed(ctx context.Context, contactID int64, subscribed bool) (bool, error)

	// SetContactName updates the display name and reports whether it changed.
	SetContactName(ctx context.Context, contactID int64, name string) (bool, error)

	// RecordActivity appends an audit entry.
	RecordActivity(ctx context.Context, a *domain.Activity) error
}

// Records reads back what is stored about one contact.
type Records interface {
	// ContactTags returns the contact's tags ordered by slug.
	ContactTags(ctx context.Context, contactID int64) ([]domain.Tag, error)

	// ContactActivity returns the contact's audit trail, newest first.
	ContactActivity(ctx context.Context, contactID int64) ([]domain.Activity, error)

	// MessagesTo returns messages addressed to email, newest first, without
	// their bodies.
	MessagesTo(ctx context.Context, email string) ([]domain.Message, error)
}

// Broadcasts persists broadcast content and performs the message fan-out.
type Broadcasts interface {
	InsertEmail(ctx context.Context, e *domain.Email) error
	InsertBroadcast(ctx context.Context, b *domain.Broadcast) error

	// FanOut inserts one pending message per contact matched by the
	// broadcast's audience as a single set-based write and returns the
	// number of rows created.
	FanOut(ctx context.Context, b *domain.Broadcast, e *domain.Email) (int, error)
}

// Tx is one unit of work. Commit or Rollback ends it; Rollback after Commit
// is a no-op.
type Tx interface {
	Audience
	Directory
	Records
	Broadcasts
	Commit() error
	Rollback() error
}

// Store opens transactions and serves read-only queries outside of them.
type Store interface {
	Audience
	BeginTx(ctx context.Context) (Tx, error)
	SearchContacts(ctx context.Context, term string, limit int) ([]domain.Contact, error)
	FindContactByKey(ctx context.Context, key string) (*domain.Contact, error)
}

// Publisher delivers the best-effort "broadcast queued" signal.
type Publisher interface {
	Publish(ctx context.Context, slug string) error
}
