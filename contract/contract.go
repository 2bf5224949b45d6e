package contract

import (
	"context"
	"reflect"

	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connected party's delivery channel. Consume must never
// block the caller: delivery is fire-and-forget and a slow consumer only
// loses its own events. Close releases the connection owning the sink.
type EventSink interface {
	Consume(e event.Event)
	Close()
}

// IRegistry indexes live connections. It enforces one connection per handle
// (last login wins) and one handle per connection.
type IRegistry interface {
	Attach(handle, connID string, sink EventSink) (superseded EventSink, displaced string)
	Detach(connID string) (string, bool)
	Sink(handle string) (EventSink, bool)
	AllSinks() []EventSink
	Online() []string
	Count() int
}
