package ws

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

type testFrame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newTestGateway(t *testing.T) *httptest.Server {
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

	e := echo.New()
	gateway := NewGateway(slog.Default(),
		services.NewAuthService(engine),
		services.NewRelayService(engine),
		services.NewPresenceService(engine),
		16)
	gateway.Register(e)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(server.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType, id string, data any) {
	t.Helper()
	payload := map[string]any{"type": frameType}
	if id != "" {
		payload["id"] = id
	}
	if data != nil {
		payload["data"] = data
	}
	require.NoError(t, conn.WriteJSON(payload))
}

// awaitFrame reads until a frame of the wanted type arrives, skipping
// interleaved pushes (a login ack may race with a presence broadcast).
func awaitFrame(t *testing.T, conn *websocket.Conn, frameType string) testFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f testFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == frameType {
			return f
		}
	}
}

func register(t *testing.T, conn *websocket.Conn, handle, secret string) {
	t.Helper()
	sendFrame(t, conn, "register", "r-"+handle, map[string]string{"handle": handle, "secret": secret})
	f := awaitFrame(t, conn, "ack")
	var ack struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &ack))
	require.True(t, ack.Success)
}

func login(t *testing.T, conn *websocket.Conn, handle, secret string) []string {
	t.Helper()
	sendFrame(t, conn, "login", "l-"+handle, map[string]string{"handle": handle, "secret": secret})
	f := awaitFrame(t, conn, "ack")
	var ack struct {
		Success bool     `json:"success"`
		Handle  string   `json:"handle"`
		Online  []string `json:"online"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &ack))
	require.True(t, ack.Success)
	require.Equal(t, handle, ack.Handle)
	return ack.Online
}

func TestGateway_Login_Acknowledges_With_Online_Set(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	aliceConn := dial(t, server)
	register(t, aliceConn, "alice", "a")
	req.Equal([]string{"alice"}, login(t, aliceConn, "alice", "a"))

	bobConn := dial(t, server)
	register(t, bobConn, "bob", "b")
	req.Equal([]string{"alice", "bob"}, login(t, bobConn, "bob", "b"))
}

func TestGateway_Login_Rejects_Bad_Credential(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)
	conn := dial(t, server)
	register(t, conn, "alice", "a")

	sendFrame(t, conn, "login", "1", map[string]string{"handle": "alice", "secret": "nope"})
	f := awaitFrame(t, conn, "ack")
	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	req.NoError(json.Unmarshal(f.Data, &ack))
	req.False(ack.Success)
	req.Equal("wrong_password", ack.Error)
}

func TestGateway_Presence_Broadcast_On_Login_And_Disconnect(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	aliceConn := dial(t, server)
	register(t, aliceConn, "alice", "a")
	login(t, aliceConn, "alice", "a")

	bobConn := dial(t, server)
	register(t, bobConn, "bob", "b")
	login(t, bobConn, "bob", "b")

	// Alice sees bob come online
	f := awaitFrame(t, aliceConn, "user_status")
	var status struct {
		Handle string `json:"handle"`
		Online bool   `json:"online"`
	}
	req.NoError(json.Unmarshal(f.Data, &status))
	req.Equal("bob", status.Handle)
	req.True(status.Online)

	// When bob's connection drops, alice sees him go offline
	req.NoError(bobConn.Close())
	f = awaitFrame(t, aliceConn, "user_status")
	req.NoError(json.Unmarshal(f.Data, &status))
	req.Equal("bob", status.Handle)
	req.False(status.Online)
}

func TestGateway_Private_Message_Delivered_And_Echoed(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	aliceConn := dial(t, server)
	register(t, aliceConn, "alice", "a")
	login(t, aliceConn, "alice", "a")

	bobConn := dial(t, server)
	register(t, bobConn, "bob", "b")
	login(t, bobConn, "bob", "b")

	sendFrame(t, aliceConn, "private_message", "m1", map[string]string{
		"from": "alice", "to": "bob", "body": "hello bob",
	})

	var message struct {
		From string `json:"from"`
		To   string `json:"to"`
		Body string `json:"body"`
	}

	// Bob receives the delivery
	f := awaitFrame(t, bobConn, "new_message")
	req.NoError(json.Unmarshal(f.Data, &message))
	req.Equal("alice", message.From)
	req.Equal("hello bob", message.Body)

	// Alice gets her own echo
	f = awaitFrame(t, aliceConn, "new_message")
	req.NoError(json.Unmarshal(f.Data, &message))
	req.Equal("hello bob", message.Body)
}

func TestGateway_Global_Message_Reaches_Sender_Too(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	conn := dial(t, server)
	register(t, conn, "alice", "a")
	login(t, conn, "alice", "a")

	sendFrame(t, conn, "global_message", "g1", map[string]string{
		"from": "alice", "body": "hi all",
	})

	f := awaitFrame(t, conn, "global_message")
	var message struct {
		From string `json:"from"`
		Body string `json:"body"`
	}
	req.NoError(json.Unmarshal(f.Data, &message))
	req.Equal("alice", message.From)
	req.Equal("hi all", message.Body)
}

func TestGateway_History_Over_Persistent_Path(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	conn := dial(t, server)
	register(t, conn, "alice", "a")
	register(t, conn, "bob", "b")
	login(t, conn, "alice", "a")

	sendFrame(t, conn, "private_message", "m1", map[string]string{
		"from": "alice", "to": "bob", "body": "first",
	})
	awaitFrame(t, conn, "new_message")

	sendFrame(t, conn, "get_chat_history", "h1", map[string]string{
		"handle_a": "bob", "handle_b": "alice",
	})
	f := awaitFrame(t, conn, "ack")
	var ack struct {
		Success bool `json:"success"`
		Chat    []struct {
			From string `json:"from"`
			Body string `json:"body"`
		} `json:"chat"`
	}
	req.NoError(json.Unmarshal(f.Data, &ack))
	req.True(ack.Success)
	req.Len(ack.Chat, 1)
	req.Equal("first", ack.Chat[0].Body)
}

func TestGateway_Superseding_Login_Closes_Previous_Connection(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	firstConn := dial(t, server)
	register(t, firstConn, "alice", "a")
	login(t, firstConn, "alice", "a")

	// When alice logs in again from a second connection
	secondConn := dial(t, server)
	login(t, secondConn, "alice", "a")

	// Then the first connection is closed by the server
	deadline := time.Now().Add(3 * time.Second)
	req.NoError(firstConn.SetReadDeadline(deadline))
	for {
		var f testFrame
		if err := firstConn.ReadJSON(&f); err != nil {
			break
		}
	}

	// And alice is still online exactly once
	req.Equal([]string{"alice"}, loginFresh(t, server))
}

// loginFresh logs a throwaway handle in just to read the online set.
func loginFresh(t *testing.T, server *httptest.Server) []string {
	t.Helper()
	conn := dial(t, server)
	register(t, conn, "probe", "p")
	online := login(t, conn, "probe", "p")
	out := make([]string, 0, len(online))
	for _, handle := range online {
		if handle != "probe" {
			out = append(out, handle)
		}
	}
	return out
}
