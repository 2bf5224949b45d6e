// Package e2e runs scenarios against a live relay process, exercising the
// stateless routes and the persistent connection together. Point
// E2E_SERVER_URL at a running instance; without it the suite skips.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set, skipping end-to-end suite")
	}
}

// Step prints a colorized header so scenario phases stand out in the log
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Post issues a JSON request against the stateless surface and decodes the
// response, logging both bodies when E2E_DEBUG_JSON is enabled.
func (s *BaseRelaySuite) Post(path string, payload any) (int, map[string]any) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	start := time.Now()
	resp, err := http.Post(s.Config.ServerURL+path, "application/json", bytes.NewReader(body))
	s.Require().NoError(err, "POST "+path+" failed")
	defer resp.Body.Close()

	return s.readResponse("POST", path, string(body), resp, start)
}

func (s *BaseRelaySuite) Get(path string) (int, map[string]any) {
	start := time.Now()
	resp, err := http.Get(s.Config.ServerURL + path)
	s.Require().NoError(err, "GET "+path+" failed")
	defer resp.Body.Close()

	return s.readResponse("GET", path, "", resp, start)
}

func (s *BaseRelaySuite) readResponse(method, path, requestBody string, resp *http.Response, start time.Time) (int, map[string]any) {
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		if requestBody != "" {
			fmt.Fprintln(&logBuilder, "\nREQUEST:")
			fmt.Fprintln(&logBuilder, requestBody)
		}
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(raw, &payload))
	return resp.StatusCode, payload
}

// Dial opens a persistent connection to the relay.
func (s *BaseRelaySuite) Dial() *websocket.Conn {
	url := strings.Replace(s.Config.ServerURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+url)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

type wsFrame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (s *BaseRelaySuite) SendFrame(conn *websocket.Conn, frameType, id string, data any) {
	payload := map[string]any{"type": frameType}
	if id != "" {
		payload["id"] = id
	}
	if data != nil {
		payload["data"] = data
	}
	s.Require().NoError(conn.WriteJSON(payload))
}

// AwaitFrame reads until a frame of the wanted type arrives, skipping
// interleaved pushes.
func (s *BaseRelaySuite) AwaitFrame(conn *websocket.Conn, frameType string) wsFrame {
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var f wsFrame
		s.Require().NoError(conn.ReadJSON(&f), "waiting for frame "+frameType)
		if s.Config.DebugJSON {
			s.T().Logf("WS <- %s %s", f.Type, string(f.Data))
		}
		if f.Type == frameType {
			return f
		}
	}
}
