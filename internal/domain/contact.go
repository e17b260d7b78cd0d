package domain

import (
	"strings"
	"time"
)

// Contact is a person who can receive broadcasts. Email is stored normalized
// (see NormalizeEmail) and is unique; Key is the opaque token used by
// unauthenticated opt-out links and never changes once assigned.
type Contact struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Subscribed bool      `json:"subscribed" db:"subscribed"`
	Key        string    `json:"key" db:"key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NormalizeEmail trims and lowercases an address so that uniqueness checks
// are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like an address. It is deliberately
// loose: a non-empty local part, one "@", and a domain.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}

// DefaultContactName derives a display name from an address: its local part.
func DefaultContactName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// Tag labels contacts. Slug is derived from Name and is unique.
type Tag struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
}

// NewTag builds an unsaved tag whose slug is derived from name.
func NewTag(name string) *Tag {
	name = strings.TrimSpace(name)
	return &Tag{Name: name, Slug: Slugify(name)}
}

// Tagged associates a contact with a tag. The pair is unique.
type Tagged struct {
	ContactID int64 `json:"contact_id" db:"contact_id"`
	TagID     int64 `json:"tag_id" db:"tag_id"`
}

// Slugify lowercases s and replaces whitespace runs with a single hyphen.
func Slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
