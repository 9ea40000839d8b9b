package models

import "time"

// Status is the read-lifecycle state of a contact message.
type Status string

const (
	StatusUnread  Status = "unread"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusReplied:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// A same-status transition is permitted so repeated mark-read calls
// stay idempotent.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUnread:
		return next == StatusRead || next == StatusReplied
	case StatusRead:
		return next == StatusReplied
	}
	return false
}

// Message is a single directed contact message between a player and an admin.
// SenderID is nil when the sender is known only by email (degraded identity).
type Message struct {
	ID             int       `db:"id" json:"id"`
	SenderID       *string   `db:"sender_id" json:"sender_id,omitempty"`
	SenderName     string    `db:"sender_name" json:"sender_name"`
	SenderEmail    string    `db:"sender_email" json:"sender_email"`
	RecipientEmail string    `db:"recipient_email" json:"recipient_email"`
	Subject        string    `db:"subject" json:"subject"`
	Body           string    `db:"body" json:"body"`
	Status         Status    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NewMessage carries the fields required to insert a message.
type NewMessage struct {
	SenderID       *string
	SenderName     string `validate:"required"`
	SenderEmail    string `validate:"required,email"`
	RecipientEmail string `validate:"required,email"`
	Subject        string `validate:"required"`
	Body           string `validate:"required"`
}

// Conversation is the derived thread between the viewer and one
// counterpart. It is recomputed from the message collection on every
// fetch and never persisted.
type Conversation struct {
	CounterpartName  string    `json:"counterpart_name"`
	CounterpartEmail string    `json:"counterpart_email"`
	Messages         []Message `json:"messages"`
	UnreadCount      int       `json:"unread_count"`
}
