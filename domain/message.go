package domain

import "github.com/google/uuid"

type MessageKind string

const (
	KindDirected  MessageKind = "directed"
	KindBroadcast MessageKind = "broadcast"
)

// Message is one immutable entry of the relay log. Directed messages carry a
// recipient; broadcast messages leave To empty and reach every connected
// party. SentAt is seconds since epoch.
type Message struct {
	ID     uuid.UUID
	Kind   MessageKind
	From   string
	To     string
	Body   string
	SentAt int64
}

// MatchesPair reports whether a directed message belongs to the conversation
// between a and b, in either direction.
func (m Message) MatchesPair(a, b string) bool {
	if m.Kind != KindDirected {
		return false
	}
	return (m.From == a && m.To == b) || (m.From == b && m.To == a)
}
