package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/sink"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	ackBufferSize  = 16
)

// frame is one inbound request on the persistent path. A frame carrying an
// ID receives exactly one ack with the same ID; an omitted ID means the
// caller wants no acknowledgment, which never blocks the relay.
type frame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	gateway *Gateway
	conn    *websocket.Conn
	connID  string
	snk     *sink.ChannelSink
	acks    chan outFrame
	log     *slog.Logger
}

func newClient(g *Gateway, conn *websocket.Conn) *client {
	connID := uuid.NewString()
	return &client{
		gateway: g,
		conn:    conn,
		connID:  connID,
		snk:     sink.NewChannelSink(g.log, g.bufferSize),
		acks:    make(chan outFrame, ackBufferSize),
		log:     g.log.With(slog.String("conn_id", connID)),
	}
}

// readPump dispatches inbound frames run-to-completion, one at a time. When
// the read loop ends, for whatever reason, the connection detaches: the
// implicit disconnect event of the persistent surface.
func (c *client) readPump() {
	defer func() {
		c.gateway.presence.Detach(c.connID)
		c.snk.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("connection closed", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Debug("malformed frame dropped", "error", err)
			continue
		}
		c.dispatch(f)
	}
}

// writePump is the single writer for this connection. It interleaves pushed
// events, acks and keepalive pings, and shuts the socket when the sink is
// released (local teardown or a superseding login elsewhere).
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.snk.Events():
			if !c.write(outFrame{Type: evt.Name(), Data: evt}) {
				return
			}
		case f := <-c.acks:
			if !c.write(f) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.snk.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) write(f outFrame) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		c.log.Debug("write failed", "error", err)
		return false
	}
	return true
}

type credentialsData struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

type privateMessageData struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type globalMessageData struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type historyData struct {
	HandleA string `json:"handle_a"`
	HandleB string `json:"handle_b"`
}

type messagePayload struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Body   string `json:"body"`
	SentAt int64  `json:"sent_at"`
}

func (c *client) dispatch(f frame) {
	switch f.Type {
	case "register":
		c.handleRegister(f)
	case "login":
		c.handleLogin(f)
	case "private_message":
		c.handlePrivateMessage(f)
	case "global_message":
		c.handleGlobalMessage(f)
	case "get_chat_history":
		c.handleChatHistory(f)
	case "get_global_history":
		c.handleGlobalHistory(f)
	default:
		c.log.Debug("unknown frame type", "type", f.Type)
		c.ack(f.ID, map[string]any{"success": false, "error": "unknown_type"})
	}
}

func (c *client) handleRegister(f frame) {
	var req credentialsData
	if !c.decode(f, &req) {
		return
	}
	if err := c.gateway.auth.Register(domain.RegisterCommand{Handle: req.Handle, Secret: req.Secret}); err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	c.ack(f.ID, map[string]any{"success": true})
}

// handleLogin authenticates, then attaches this connection to the handle.
// The attach broadcasts the online transition to every connected party; the
// ack carries the resulting online set for the caller's own contact list.
func (c *client) handleLogin(f frame) {
	var req credentialsData
	if !c.decode(f, &req) {
		return
	}
	if _, err := c.gateway.auth.Login(domain.LoginCommand{Handle: req.Handle, Secret: req.Secret}); err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	online := c.gateway.presence.Attach(req.Handle, c.connID, c.snk)
	c.ack(f.ID, map[string]any{
		"success": true,
		"handle":  req.Handle,
		"online":  online,
	})
}

func (c *client) handlePrivateMessage(f frame) {
	var req privateMessageData
	if !c.decode(f, &req) {
		return
	}
	cmd := domain.SendDirectedCommand{From: req.From, To: req.To, Body: req.Body}
	if err := c.gateway.relay.SendDirected(cmd); err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	c.ack(f.ID, map[string]any{"success": true})
}

func (c *client) handleGlobalMessage(f frame) {
	var req globalMessageData
	if !c.decode(f, &req) {
		return
	}
	if err := c.gateway.relay.SendBroadcast(domain.SendBroadcastCommand{From: req.From, Body: req.Body}); err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	c.ack(f.ID, map[string]any{"success": true})
}

func (c *client) handleChatHistory(f frame) {
	var req historyData
	if !c.decode(f, &req) {
		return
	}
	messages, err := c.gateway.relay.DirectedHistory(domain.HistoryCommand{
		HandleA: req.HandleA,
		HandleB: req.HandleB,
	})
	if err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	c.ack(f.ID, map[string]any{"success": true, "chat": toMessagePayloads(messages)})
}

func (c *client) handleGlobalHistory(f frame) {
	messages, err := c.gateway.relay.BroadcastHistory()
	if err != nil {
		c.ack(f.ID, failure(err))
		return
	}
	c.ack(f.ID, map[string]any{"success": true, "chat": toMessagePayloads(messages)})
}

func (c *client) decode(f frame, into any) bool {
	if len(f.Data) == 0 {
		// Empty payload still reaches validation, which reports the
		// missing fields in the ack.
		return true
	}
	if err := json.Unmarshal(f.Data, into); err != nil {
		c.ack(f.ID, failure(errors.ErrMissingFields))
		return false
	}
	return true
}

// ack sends the correlated response for a frame that requested one. The
// queue is drained by writePump; a full queue drops the ack rather than
// blocking dispatch.
func (c *client) ack(id string, payload any) {
	if id == "" {
		return
	}
	select {
	case c.acks <- outFrame{Type: "ack", ID: id, Data: payload}:
	default:
		c.log.Debug("ack queue full, dropping ack", "id", id)
	}
}

func failure(err error) map[string]any {
	return map[string]any{"success": false, "error": errors.WireCode(err)}
}

func toMessagePayloads(messages []domain.Message) []messagePayload {
	return lo.Map(messages, func(item domain.Message, _ int) messagePayload {
		return messagePayload{
			ID:     item.ID.String(),
			From:   item.From,
			To:     item.To,
			Body:   item.Body,
			SentAt: item.SentAt,
		}
	})
}
