package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

// SignedUp is the payload of a successful ContactSignup.
type SignedUp struct {
	ID         int64  `json:"id"`
	Key        string `json:"key"`
	Subscribed bool   `json:"subscribed"`
}

// SubscriptionChanged is the payload of ContactOptIn and ContactOptOut.
// Changed is false when the contact was already in the requested state.
type SubscriptionChanged struct {
	ContactID  int64 `json:"contact_id"`
	Subscribed bool  `json:"subscribed"`
	Changed    bool  `json:"changed"`
}

// ContactSignup creates a contact and records a signup activity. An address
// that already exists is rejected with ErrExists.
func (e *Engine) ContactSignup(ctx context.Context, name, email string) Result {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return Rejected(ErrInvalid, "a valid email address is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultContactName(email)
	}

	return e.inTx(ctx, "contact_signup", func(tx Tx) (Result, error) {
		_, err := tx.FindContactByEmail(ctx, email)
		if err == nil {
			return Rejected(ErrExists, "User exists"), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Result{}, err
		}

		c := &domain.Contact{
			Name:       name,
			Email:      email,
			Subscribed: e.cfg.SignupSubscribed,
			Key:        uuid.NewString(),
			CreatedAt:  time.Now().UTC(),
		}
		ok, err := tx.InsertContact(ctx, c)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			// Lost a race with a concurrent signup for the same address.
			return Rejected(ErrExists, "User exists"), nil
		}

		if err := tx.RecordActivity(ctx, &domain.Activity{
			ContactID:   c.ID,
			Key:         domain.ActivitySignup,
			Description: "New Contact",
			CreatedAt:   c.CreatedAt,
		}); err != nil {
			return Result{}, err
		}
		return OK(&SignedUp{ID: c.ID, Key: c.Key, Subscribed: c.Subscribed}, 1, 0, 0), nil
	})
}

// ContactOptIn subscribes the contact and records an optin activity.
func (e *Engine) ContactOptIn(ctx context.Context, contactID int64) Result {
	return e.inTx(ctx, "contact_optin", func(tx Tx) (Result, error) {
		c, err := tx.FindContactByID(ctx, contactID)
		if errors.Is(err, ErrNotFound) {
			return Rejected(ErrNotFound, "Contact not found"), nil
		}
		if err != nil {
			return Result{}, err
		}
		return setSubscription(ctx, tx, c, true, domain.ActivityOptIn, "Opted in")
	})
}

// ContactOptOut unsubscribes the contact that owns key and records an
// optout activity. Unknown keys are rejected with ErrNotFound. Opting out
// twice succeeds without a second activity.
func (e *Engine) ContactOptOut(ctx context.Context, key string) Result {
	key = strings.TrimSpace(key)
	if key == "" {
		return Rejected(ErrNotFound, "Contact not found")
	}
	return e.inTx(ctx, "contact_optout", func(tx Tx) (Result, error) {
		c, err := tx.FindContactByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Rejected(ErrNotFound, "Contact not found"), nil
		}
		if err != nil {
			return Result{}, err
		}
		return setSubscription(ctx, tx, c, false, domain.ActivityOptOut, "Unsubbed")
	})
}

// LinkClicked records a click activity for the contact that owns key.
func (e *Engine) LinkClicked(ctx context.Context, key, link string) Result {
	key = strings.TrimSpace(key)
	if key == "" {
		return Rejected(ErrNotFound, "Contact not found")
	}
	return e.inTx(ctx, "link_clicked", func(tx Tx) (Result, error) {
		c, err := tx.FindContactByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Rejected(ErrNotFound, "Contact not found"), nil
		}
		if err != nil {
			return Result{}, err
		}
		desc := "Link clicked"
		if link != "" {
			desc += ": " + link
		}
		if err := tx.RecordActivity(ctx, &domain.Activity{
			ContactID:   c.ID,
			Key:         domain.ActivityClick,
			Description: desc,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return Result{}, err
		}
		return OK(map[string]int64{"contact_id": c.ID}, 1, 0, 0), nil
	})
}

// setSubscription flips the flag and appends the activity in the caller's
// transaction. Nothing is written when the contact is already in the
// requested state.
func setSubscription(ctx context.Context, tx Tx, c *domain.Contact, subscribed bool, key, desc string) (Result, error) {
	changed, err := tx.SetSubscribed(ctx, c.ID, subscribed)
	if err != nil {
		return Result{}, err
	}
	payload := &SubscriptionChanged{ContactID: c.ID, Subscribed: subscribed, Changed: changed}
	if !changed {
		return OK(payload, 0, 0, 0), nil
	}
	if err := tx.RecordActivity(ctx, &domain.Activity{
		ContactID:   c.ID,
		Key:         key,
		Description: desc,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return Result{}, err
	}
	return OK(payload, 0, 1, 0), nil
}
