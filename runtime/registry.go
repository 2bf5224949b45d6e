package runtime

import (
	"sort"
	"sync"

	"chat-relay/contract"
)

type connection struct {
	id   string
	sink contract.EventSink
}

// Registry indexes live connections both by handle and by connection ID.
// The reverse index keeps Detach O(1) and makes the teardown of a
// superseded connection a recognized no-op: once a newer login owns the
// handle, the old connection is no longer addressed by anything.
type Registry struct {
	mu       sync.RWMutex
	byHandle map[string]connection
	byConn   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byHandle: make(map[string]connection),
		byConn:   make(map[string]string),
	}
}

// Attach binds handle to the given connection, last login wins. It returns
// the sink of a previous connection owned by the same handle (superseded by
// this login) and the handle previously bound to this connection when the
// connection re-logs-in under a different identity.
func (r *Registry) Attach(handle, connID string, sink contract.EventSink) (superseded contract.EventSink, displaced string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldHandle, ok := r.byConn[connID]; ok && oldHandle != handle {
		displaced = oldHandle
		delete(r.byHandle, oldHandle)
	}
	if old, ok := r.byHandle[handle]; ok && old.id != connID {
		superseded = old.sink
		delete(r.byConn, old.id)
	}

	r.byHandle[handle] = connection{id: connID, sink: sink}
	r.byConn[connID] = handle
	return superseded, displaced
}

// Detach clears the identity owning connID and returns its handle. An
// unrecognized connection (never logged in, or superseded by a newer login)
// detaches nothing.
func (r *Registry) Detach(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.byHandle, handle)
	return handle, true
}

func (r *Registry) Sink(handle string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byHandle[handle]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// AllSinks returns the delivery channel of every connected party.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.byHandle))
	for _, conn := range r.byHandle {
		sinks = append(sinks, conn.sink)
	}
	return sinks
}

// Online returns the handles currently owning a connection, sorted for
// stable presence listings.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]string, 0, len(r.byHandle))
	for handle := range r.byHandle {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	return handles
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}
