package command

import (
	"context"
	"fmt"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/pkg/logger"
)

// Config holds the policy knobs commands need. It is built from
// config.MailingConfig by the caller.
type Config struct {
	// DefaultFrom is the reply-to and sender address for broadcasts.
	DefaultFrom string
	// SignupSubscribed is the subscribed flag given to new signups. False
	// means contacts must confirm through ContactOptIn.
	SignupSubscribed bool
	// SearchLimit caps SearchContacts results.
	SearchLimit int
}

// Engine runs commands against a Store. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	store Store
	pub   Publisher
	cfg   Config
}

// New creates an engine. A nil publisher disables the delivery signal.
func New(store Store, pub Publisher, cfg Config) *Engine {
	if cfg.DefaultFrom == "" {
		cfg.DefaultFrom = "noreply@tailwind.dev"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 50
	}
	return &Engine{store: store, pub: pub, cfg: cfg}
}

// inTx runs fn inside one transaction. The transaction commits only when fn
// returns an OK result; a rejection or an error rolls it back. Rollback
// failures are logged and never replace the original error.
func (e *Engine) inTx(ctx context.Context, name string, fn func(tx Tx) (Result, error)) Result {
	log := logger.With("command", name)

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		log.Error("begin transaction failed", "err", err)
		return Failed(fmt.Errorf("%s: begin: %w", name, err))
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("rollback failed", "err", rbErr)
		}
	}()

	res, err := fn(tx)
	if err != nil {
		log.Error("command failed, rolling back", "err", err)
		return Failed(fmt.Errorf("%s: %w", name, err))
	}
	if !res.Success() {
		return res
	}

	// A failed commit also ends the transaction.
	done = true
	if err := tx.Commit(); err != nil {
		log.Error("commit failed", "err", err)
		return Failed(fmt.Errorf("%s: commit: %w", name, err))
	}
	return res
}

// CountAudience returns the number of subscribed contacts selector matches.
func (e *Engine) CountAudience(ctx context.Context, selector string) (int, error) {
	return e.store.CountAudience(ctx, normalizeSelector(selector))
}

// PreviewAudience returns up to limit contacts matched by selector.
func (e *Engine) PreviewAudience(ctx context.Context, selector string, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	err := e.store.MatchingContacts(ctx, normalizeSelector(selector), limit, func(c domain.Contact) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

// SearchContacts finds contacts whose email or name contains term.
func (e *Engine) SearchContacts(ctx context.Context, term string) ([]domain.Contact, error) {
	return e.store.SearchContacts(ctx, term, e.cfg.SearchLimit)
}

// FindContactByKey resolves an opt-out key.
func (e *Engine) FindContactByKey(ctx context.Context, key string) (*domain.Contact, error) {
	return e.store.FindContactByKey(ctx, key)
}

func normalizeSelector(s string) string {
	if s == "" || s == domain.AllSubscribers {
		return domain.AllSubscribers
	}
	return domain.Slugify(s)
}
