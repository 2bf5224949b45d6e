package domain

import "time"

// Identity is a registered handle with its credential. Handles are unique,
// never renamed, never deleted. Whether the identity currently owns a live
// connection is tracked by the runtime registry, not stored here, so the
// online flag can never disagree with the connection state.
type Identity struct {
	Handle    string
	Secret    string
	CreatedAt time.Time
}
