// Package sink provides the per-connection delivery buffer between the relay
// engine and a gateway writer.
package sink

import (
	"log/slog"
	"sync"

	"chat-relay/domain/event"
)

// ChannelSink buffers delivery events for one connection. Consume never
// blocks the engine: when the buffer is full the event is dropped for this
// connection only. The gateway's writer goroutine drains Events and watches
// Done to learn the connection was released (disconnect or superseded login).
type ChannelSink struct {
	log    *slog.Logger
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

func NewChannelSink(log *slog.Logger, bufferSize int) *ChannelSink {
	return &ChannelSink{
		log:    log,
		events: make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ChannelSink) Consume(e event.Event) {
	select {
	case <-s.done:
	case s.events <- e:
	default:
		s.log.Debug("sink buffer full, dropping event", "event", e.Name())
	}
}

func (s *ChannelSink) Events() <-chan event.Event { return s.events }

func (s *ChannelSink) Done() <-chan struct{} { return s.done }

// Close is idempotent; a sink may be closed by the engine (superseded login)
// and again by its own gateway teardown.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.done) })
}
