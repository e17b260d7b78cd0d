package domain

import "time"

// MessageStatus enumerates the delivery states of a single message.
type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
)

// MessageSourceBroadcast marks messages produced by broadcast fan-out.
const MessageSourceBroadcast = "broadcast"

// Message is one email addressed to one recipient. Broadcast fan-out creates
// one per resolved contact; a delivery worker sends them later.
type Message struct {
	ID        int64         `json:"id" db:"id"`
	Source    string        `json:"source" db:"source"`
	Slug      string        `json:"slug" db:"slug"`
	Status    MessageStatus `json:"status" db:"status"`
	SendTo    string        `json:"send_to" db:"send_to"`
	SendFrom  string        `json:"send_from" db:"send_from"`
	Subject   string        `json:"subject" db:"subject"`
	HTML      string        `json:"html" db:"html"`
	SendAt    time.Time     `json:"send_at" db:"send_at"`
	SentAt    *time.Time    `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// ReadyToSend holds when the message is pending, due at now, and every
// addressing and content field is filled in.
func (m *Message) ReadyToSend(now time.Time) bool {
	return m.Status == MessagePending &&
		!m.SendAt.After(now) &&
		m.SendTo != "" &&
		m.SendFrom != "" &&
		m.Subject != "" &&
		m.HTML != ""
}

// MarkSent transitions the message to sent.
func (m *Message) MarkSent(now time.Time) {
	m.Status = MessageSent
	m.SentAt = &now
}
