// Package ws hosts the persistent-connection gateway. One WebSocket is one
// Connection: it may issue the same operations as the stateless surface,
// plus login-with-attach, and it receives pushed delivery and presence
// events. Both gateways route through the same engine instance.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chat-relay/services"
)

type Gateway struct {
	log        *slog.Logger
	auth       services.IAuthService
	relay      services.IRelayService
	presence   services.IPresenceService
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewGateway(log *slog.Logger, auth services.IAuthService, relay services.IRelayService,
	presence services.IPresenceService, bufferSize int) *Gateway {
	return &Gateway{
		log:        log.With(slog.String("handler", "ws")),
		auth:       auth,
		relay:      relay,
		presence:   presence,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			// Same open posture as the CORS middleware on the stateless side.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Register(e *echo.Echo) {
	e.GET("/ws", g.serve)
}

func (g *Gateway) serve(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := newClient(g, conn)
	go client.writePump()
	client.readPump()
	return nil
}
