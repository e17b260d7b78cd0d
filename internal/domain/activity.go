package domain

import "time"

// Activity keys recorded for contact lifecycle events.
const (
	ActivitySignup = "signup"
	ActivityOptIn  = "optin"
	ActivityOptOut = "optout"
	ActivityClick  = "click"
	ActivityExport = "export"
	ActivityUpdate = "update"
)

// Activity is an append-only audit entry for a contact.
type Activity struct {
	ID          int64     `json:"id" db:"id"`
	ContactID   int64     `json:"contact_id" db:"contact_id"`
	Key         string    `json:"key" db:"key"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
