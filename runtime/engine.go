// Package runtime owns the live relay state: the connection registry and the
// engine serializing every directory and log mutation. It carries no
// transport concerns; both gateways call into the same engine instance.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
)

// Engine is the presence manager and relay engine. One mutex serializes each
// logical operation end to end (validate, mutate, append, deliver), which is
// the parallel equivalent of the single-threaded dispatch this design calls
// for: two independently-arriving calls observe each other's effects in
// arrival order. Delivery through sinks never blocks the lock holder.
type Engine struct {
	mu         sync.Mutex
	log        *slog.Logger
	identities repositories.IIdentityRepository
	messages   repositories.IMessageLog
	registry   contract.IRegistry
	validate   *validator.Validate
	now        func() time.Time
}

func NewEngine(log *slog.Logger, identities repositories.IIdentityRepository,
	messages repositories.IMessageLog, registry contract.IRegistry) *Engine {
	return &Engine{
		log:        log,
		identities: identities,
		messages:   messages,
		registry:   registry,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// Register creates an identity. The handle starts offline with no
// connection; the first credential wins on duplicate registration.
func (e *Engine) Register(cmd domain.RegisterCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMissingFields, err)
	}
	if err := e.identities.Create(cmd.Handle, cmd.Secret); err != nil {
		return err
	}
	e.log.Info("identity registered", "handle", cmd.Handle)
	return nil
}

// Login checks the credential and reports the identity's current online
// state. It is read-only: attaching a connection is a separate step that
// only the persistent gateway performs.
func (e *Engine) Login(cmd domain.LoginCommand) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(cmd); err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrMissingFields, err)
	}
	identity, err := e.identities.Get(cmd.Handle)
	if err != nil {
		return false, err
	}
	if identity.Secret != cmd.Secret {
		return false, errors.ErrWrongPassword
	}
	_, online := e.registry.Sink(cmd.Handle)
	return online, nil
}

// Attach binds a connection to an already-authenticated handle and
// broadcasts the online transition to every connected party. A previous
// connection of the same handle is superseded and closed; a previous
// identity of the same connection is displaced and announced offline.
// The current online set is returned for the login acknowledgment.
func (e *Engine) Attach(handle, connID string, snk contract.EventSink) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	superseded, displaced := e.registry.Attach(handle, connID, snk)
	if displaced != "" {
		e.broadcast(event.UserStatus{Handle: displaced, Online: false})
	}
	if superseded != nil {
		superseded.Close()
		e.log.Info("superseded connection closed", "handle", handle)
	}
	e.broadcast(event.UserStatus{Handle: handle, Online: true})
	e.log.Info("connection attached", "handle", handle, "conn_id", connID)
	return e.registry.Online()
}

// Detach clears the identity owning the terminated connection and
// broadcasts the offline transition. Unrecognized connections detach
// nothing and emit nothing.
func (e *Engine) Detach(connID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	handle, ok := e.registry.Detach(connID)
	if !ok {
		return "", false
	}
	e.broadcast(event.UserStatus{Handle: handle, Online: false})
	e.log.Info("connection detached", "handle", handle, "conn_id", connID)
	return handle, true
}

// SendDirected validates, appends to the log, then delivers best-effort to
// the recipient's connection and echoes to the sender's own. The append
// happens regardless of either party being connected; a miss is not an
// error and the message stays retrievable through history.
func (e *Engine) SendDirected(cmd domain.SendDirectedCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMissingFields, err)
	}
	if err := e.mustExist(cmd.From, errors.ErrSenderNotFound); err != nil {
		return err
	}
	if err := e.mustExist(cmd.To, errors.ErrRecipientNotFound); err != nil {
		return err
	}

	message := domain.Message{
		ID:     uuid.New(),
		Kind:   domain.KindDirected,
		From:   cmd.From,
		To:     cmd.To,
		Body:   cmd.Body,
		SentAt: e.now().Unix(),
	}
	if err := e.messages.Append(message); err != nil {
		return err
	}

	evt := event.DirectMessage{
		ID:     message.ID,
		From:   message.From,
		To:     message.To,
		Body:   message.Body,
		SentAt: message.SentAt,
	}
	e.deliver(cmd.To, evt)
	e.deliver(cmd.From, evt)
	return nil
}

// SendBroadcast appends and delivers to every connected party, the sender
// included. The sender label is not resolved against the directory:
// broadcast accepts any label.
func (e *Engine) SendBroadcast(cmd domain.SendBroadcastCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMissingFields, err)
	}

	message := domain.Message{
		ID:     uuid.New(),
		Kind:   domain.KindBroadcast,
		From:   cmd.From,
		Body:   cmd.Body,
		SentAt: e.now().Unix(),
	}
	if err := e.messages.Append(message); err != nil {
		return err
	}

	e.broadcast(event.GlobalMessage{
		ID:     message.ID,
		From:   message.From,
		Body:   message.Body,
		SentAt: message.SentAt,
	})
	return nil
}

// DirectedHistory returns the conversation between two handles, unordered
// pair, arrival order.
func (e *Engine) DirectedHistory(cmd domain.HistoryCommand) ([]domain.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMissingFields, err)
	}
	return e.messages.DirectedHistory(cmd.HandleA, cmd.HandleB)
}

func (e *Engine) BroadcastHistory() ([]domain.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messages.BroadcastHistory()
}

func (e *Engine) Online() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Online()
}

func (e *Engine) Health() domain.Health {
	e.mu.Lock()
	defer e.mu.Unlock()

	count, err := e.identities.Count()
	if err != nil {
		e.log.Error("counting identities failed", "error", err)
	}
	return domain.Health{
		Status:      "chat-relay server is running",
		UsersCount:  count,
		Connections: e.registry.Count(),
	}
}

func (e *Engine) mustExist(handle string, missing error) error {
	ok, err := e.identities.Exists(handle)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", missing, handle)
	}
	return nil
}

func (e *Engine) deliver(handle string, evt event.Event) {
	if snk, ok := e.registry.Sink(handle); ok {
		snk.Consume(evt)
	}
}

func (e *Engine) broadcast(evt event.Event) {
	for _, snk := range e.registry.AllSinks() {
		snk.Consume(evt)
	}
}
