// Package event defines the payloads pushed to connected parties. Events are
// produced by the relay engine and consumed by per-connection sinks; the
// persistent gateway serializes them as frames named after Event.Name.
package event

import "github.com/google/uuid"

type Event interface {
	// Name is the wire type of the frame carrying this event.
	Name() string
}

// DirectMessage is delivered to the recipient's connection and echoed to the
// sender's own connection, so the sending client reflects the message
// without re-querying history.
type DirectMessage struct {
	ID     uuid.UUID `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Body   string    `json:"body"`
	SentAt int64     `json:"sent_at"`
}

func (DirectMessage) Name() string { return "new_message" }

// GlobalMessage is delivered to every connected party, the sender included.
type GlobalMessage struct {
	ID     uuid.UUID `json:"id"`
	From   string    `json:"from"`
	Body   string    `json:"body"`
	SentAt int64     `json:"sent_at"`
}

func (GlobalMessage) Name() string { return "global_message" }

// UserStatus announces an online/offline transition to all connected
// parties. One event per transition, no deduplication.
type UserStatus struct {
	Handle string `json:"handle"`
	Online bool   `json:"online"`
}

func (UserStatus) Name() string { return "user_status" }
