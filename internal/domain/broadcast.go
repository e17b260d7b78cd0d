package domain

import "time"

// AllSubscribers is the audience selector matching every subscribed contact.
const AllSubscribers = "*"

// BroadcastStatus enumerates the lifecycle states of a broadcast.
type BroadcastStatus string

const (
	BroadcastPending BroadcastStatus = "pending"
	BroadcastSent    BroadcastStatus = "sent"
)

// Email is the immutable content of one broadcast.
type Email struct {
	ID        int64     `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Subject   string    `json:"subject" db:"subject"`
	Preview   string    `json:"preview" db:"preview"`
	HTML      string    `json:"html" db:"html"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Broadcast is one outbound campaign: an Email plus the audience selector
// it is sent to. SendToTag is either AllSubscribers or a tag slug.
type Broadcast struct {
	ID        int64           `json:"id" db:"id"`
	EmailID   int64           `json:"email_id" db:"email_id"`
	Status    BroadcastStatus `json:"status" db:"status"`
	Name      string          `json:"name" db:"name"`
	Slug      string          `json:"slug" db:"slug"`
	ReplyTo   string          `json:"reply_to" db:"reply_to"`
	SendToTag string          `json:"send_to_tag" db:"send_to_tag"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TargetsAll returns true if the broadcast goes to every subscribed contact.
func (b *Broadcast) TargetsAll() bool {
	return b.SendToTag == "" || b.SendToTag == AllSubscribers
}
