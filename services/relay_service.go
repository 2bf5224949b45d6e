package services

import (
	"chat-relay/domain"
	"chat-relay/runtime"
)

type IRelayService interface {
	SendDirected(cmd domain.SendDirectedCommand) error
	SendBroadcast(cmd domain.SendBroadcastCommand) error
	DirectedHistory(cmd domain.HistoryCommand) ([]domain.Message, error)
	BroadcastHistory() ([]domain.Message, error)
	Online() []string
	Health() domain.Health
}

// RelayService is the message path shared by both gateways: a send arriving
// over a stateless call triggers live delivery exactly as one arriving over
// a persistent connection does.
type RelayService struct {
	engine *runtime.Engine
}

func NewRelayService(engine *runtime.Engine) IRelayService {
	return &RelayService{engine: engine}
}

func (s *RelayService) SendDirected(cmd domain.SendDirectedCommand) error {
	return s.engine.SendDirected(cmd)
}

func (s *RelayService) SendBroadcast(cmd domain.SendBroadcastCommand) error {
	return s.engine.SendBroadcast(cmd)
}

func (s *RelayService) DirectedHistory(cmd domain.HistoryCommand) ([]domain.Message, error) {
	return s.engine.DirectedHistory(cmd)
}

func (s *RelayService) BroadcastHistory() ([]domain.Message, error) {
	return s.engine.BroadcastHistory()
}

func (s *RelayService) Online() []string {
	return s.engine.Online()
}

func (s *RelayService) Health() domain.Health {
	return s.engine.Health()
}
