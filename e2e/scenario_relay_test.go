package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testRelayScenarioSuite struct {
	BaseRelaySuite
}

func TestRelayScenarioSuite(t *testing.T) {
	suite.Run(t, &testRelayScenarioSuite{})
}

func (s *testRelayScenarioSuite) TestFullRelayFlow() {
	// Unique handles per run: the directory of a live relay keeps everything
	// registered since its start
	suffix := uuid.NewString()[:8]
	alice := "alice-" + suffix
	bob := "bob-" + suffix

	s.Run("Step 0: Server is alive", func() {
		s.Step("Health check")
		code, payload := s.Get("/")
		s.Require().Equal(http.StatusOK, code)
		s.Require().NotEmpty(payload["status"])
	})

	s.Run("Step 1: Register both parties over the stateless surface", func() {
		s.Step("Registering " + alice + " and " + bob)
		code, _ := s.Post("/api/register", map[string]string{"handle": alice, "secret": "a"})
		s.Require().Equal(http.StatusOK, code)
		code, _ = s.Post("/api/register", map[string]string{"handle": bob, "secret": "b"})
		s.Require().Equal(http.StatusOK, code)

		// Duplicate registration is refused, first credential wins
		code, payload := s.Post("/api/register", map[string]string{"handle": alice, "secret": "other"})
		s.Require().Equal(http.StatusBadRequest, code)
		s.Require().Equal("user_exists", payload["error"])
	})

	aliceConn := s.Dial()
	bobConn := s.Dial()

	s.Run("Step 2: Both parties attach over the persistent surface", func() {
		s.Step("Logging in " + alice)
		s.SendFrame(aliceConn, "login", "l1", map[string]string{"handle": alice, "secret": "a"})
		ack := s.AwaitFrame(aliceConn, "ack")
		var loginAck struct {
			Success bool     `json:"success"`
			Online  []string `json:"online"`
		}
		s.Require().NoError(json.Unmarshal(ack.Data, &loginAck))
		s.Require().True(loginAck.Success)
		s.Require().Contains(loginAck.Online, alice)

		s.Step("Logging in " + bob)
		s.SendFrame(bobConn, "login", "l2", map[string]string{"handle": bob, "secret": "b"})
		ack = s.AwaitFrame(bobConn, "ack")
		s.Require().NoError(json.Unmarshal(ack.Data, &loginAck))
		s.Require().True(loginAck.Success)
		s.Require().Contains(loginAck.Online, alice)
		s.Require().Contains(loginAck.Online, bob)
	})

	s.Run("Step 3: Stateless send reaches the persistent connection", func() {
		s.Step("Messaging " + bob + " through the HTTP route")
		body := fmt.Sprintf("hello at %d", time.Now().UnixNano())
		code, _ := s.Post("/api/send-message", map[string]string{
			"from": alice, "to": bob, "body": body,
		})
		s.Require().Equal(http.StatusOK, code)

		delivery := s.AwaitFrame(bobConn, "new_message")
		var message struct {
			From string `json:"from"`
			Body string `json:"body"`
		}
		s.Require().NoError(json.Unmarshal(delivery.Data, &message))
		s.Require().Equal(alice, message.From)
		s.Require().Equal(body, message.Body)

		// The sender's own connection got the echo
		echo := s.AwaitFrame(aliceConn, "new_message")
		s.Require().NoError(json.Unmarshal(echo.Data, &message))
		s.Require().Equal(body, message.Body)
	})

	s.Run("Step 4: History agrees in both query directions", func() {
		s.Step("Reading the conversation")
		code, forward := s.Get(fmt.Sprintf("/api/chat-history?handle_a=%s&handle_b=%s", alice, bob))
		s.Require().Equal(http.StatusOK, code)
		code, backward := s.Get(fmt.Sprintf("/api/chat-history?handle_a=%s&handle_b=%s", bob, alice))
		s.Require().Equal(http.StatusOK, code)
		s.Require().Equal(forward["chat"], backward["chat"])
		s.Require().NotEmpty(forward["chat"])
	})

	s.Run("Step 5: Disconnect broadcasts the offline transition", func() {
		s.Step("Dropping " + bob + "'s connection")
		s.Require().NoError(bobConn.Close())

		status := s.AwaitFrame(aliceConn, "user_status")
		var transition struct {
			Handle string `json:"handle"`
			Online bool   `json:"online"`
		}
		for {
			s.Require().NoError(json.Unmarshal(status.Data, &transition))
			if transition.Handle == bob && !transition.Online {
				break
			}
			status = s.AwaitFrame(aliceConn, "user_status")
		}

		code, payload := s.Get("/online-users")
		s.Require().Equal(http.StatusOK, code)
		s.Require().NotContains(payload["online"], bob)
	})
}
