package services

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

type nullSink struct{}

func (nullSink) Consume(e event.Event) {}
func (nullSink) Close()                {}

func newServices(t *testing.T) (IAuthService, IRelayService, IPresenceService) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := runtime.NewEngine(
		slog.Default(),
		repositories.NewIdentityRepository(db),
		repositories.NewMessageLog(db, slog.Default()),
		runtime.NewRegistry(),
	)
	return NewAuthService(engine), NewRelayService(engine), NewPresenceService(engine)
}

func TestServices_Share_One_Engine(t *testing.T) {
	req := require.New(t)
	auth, relay, presence := newServices(t)

	// Given two registered handles
	req.NoError(auth.Register(domain.RegisterCommand{Handle: "alice", Secret: "a"}))
	req.NoError(auth.Register(domain.RegisterCommand{Handle: "bob", Secret: "b"}))

	// When alice attaches through the presence service
	online := presence.Attach("alice", uuid.NewString(), nullSink{})
	req.Equal([]string{"alice"}, online)

	// Then the relay service sees the same state
	req.Equal([]string{"alice"}, relay.Online())
	req.Equal(1, relay.Health().Connections)
	req.Equal(2, relay.Health().UsersCount)

	// And a message sent through the relay service lands in history
	req.NoError(relay.SendDirected(domain.SendDirectedCommand{From: "alice", To: "bob", Body: "hi"}))
	messages, err := relay.DirectedHistory(domain.HistoryCommand{HandleA: "alice", HandleB: "bob"})
	req.NoError(err)
	req.Len(messages, 1)
}

func TestPresenceService_Detach(t *testing.T) {
	req := require.New(t)
	auth, relay, presence := newServices(t)
	req.NoError(auth.Register(domain.RegisterCommand{Handle: "alice", Secret: "a"}))

	connID := uuid.NewString()
	presence.Attach("alice", connID, nullSink{})

	handle, ok := presence.Detach(connID)

	req.True(ok)
	req.Equal("alice", handle)
	req.Empty(relay.Online())
}
