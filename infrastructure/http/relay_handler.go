package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
)

// MetricSource exposes the latest self-sample of the server process.
type MetricSource interface {
	Latest() domain.ProcessMetric
}

// RelayHandler serves the stateless surface. Semantics are identical to the
// persistent path because every route delegates to the same engine; the
// only difference is how the call arrives.
type RelayHandler struct {
	auth    services.IAuthService
	relay   services.IRelayService
	metrics MetricSource
	log     *slog.Logger
}

func NewRelayHandler(log *slog.Logger, auth services.IAuthService,
	relay services.IRelayService, metrics MetricSource) *RelayHandler {
	return &RelayHandler{
		auth:    auth,
		relay:   relay,
		metrics: metrics,
		log:     log.With(slog.String("handler", "relay")),
	}
}

func (h *RelayHandler) Register(e *echo.Echo) {
	e.GET("/", h.Health)
	e.GET("/online-users", h.OnlineUsers)

	api := e.Group("/api")
	api.POST("/register", h.RegisterIdentity)
	api.POST("/login", h.Login)
	api.POST("/send-message", h.SendMessage)
	api.GET("/chat-history", h.ChatHistory)
	api.POST("/send-global", h.SendGlobal)
	api.GET("/global-history", h.GlobalHistory)
}

type credentialsRequest struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

type sendMessageRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendGlobalRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type messageResponse struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Body   string `json:"body"`
	SentAt int64  `json:"sent_at"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	UsersCount    int     `json:"usersCount"`
	Connections   int     `json:"connections"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float32 `json:"memoryPercent"`
}

func (h *RelayHandler) Health(c echo.Context) error {
	health := h.relay.Health()
	resp := healthResponse{
		Status:      health.Status,
		UsersCount:  health.UsersCount,
		Connections: health.Connections,
	}
	if h.metrics != nil {
		sample := h.metrics.Latest()
		resp.CPUPercent = sample.CPUPercent
		resp.MemoryPercent = sample.MemoryPercent
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RelayHandler) OnlineUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"online": h.relay.Online()})
}

func (h *RelayHandler) RegisterIdentity(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, errors.ErrMissingFields)
	}
	if err := h.auth.Register(domain.RegisterCommand{Handle: req.Handle, Secret: req.Secret}); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *RelayHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, errors.ErrMissingFields)
	}
	online, err := h.auth.Login(domain.LoginCommand{Handle: req.Handle, Secret: req.Secret})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"handle":  req.Handle,
		"online":  online,
	})
}

func (h *RelayHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, errors.ErrMissingFields)
	}
	cmd := domain.SendDirectedCommand{From: req.From, To: req.To, Body: req.Body}
	if err := h.relay.SendDirected(cmd); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *RelayHandler) ChatHistory(c echo.Context) error {
	cmd := domain.HistoryCommand{
		HandleA: c.QueryParam("handle_a"),
		HandleB: c.QueryParam("handle_b"),
	}
	messages, err := h.relay.DirectedHistory(cmd)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"chat":    toMessageResponses(messages),
	})
}

func (h *RelayHandler) SendGlobal(c echo.Context) error {
	var req sendGlobalRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, errors.ErrMissingFields)
	}
	if err := h.relay.SendBroadcast(domain.SendBroadcastCommand{From: req.From, Body: req.Body}); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *RelayHandler) GlobalHistory(c echo.Context) error {
	messages, err := h.relay.BroadcastHistory()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"chat":    toMessageResponses(messages),
	})
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(item domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:     item.ID.String(),
			From:   item.From,
			To:     item.To,
			Body:   item.Body,
			SentAt: item.SentAt,
		}
	})
}

func fail(c echo.Context, err error) error {
	return c.JSON(errors.HTTPStatus(err), map[string]any{
		"success": false,
		"error":   errors.WireCode(err),
	})
}
