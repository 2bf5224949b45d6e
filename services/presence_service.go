package services

import (
	"chat-relay/contract"
	"chat-relay/runtime"
)

type IPresenceService interface {
	Attach(handle, connID string, sink contract.EventSink) []string
	Detach(connID string) (string, bool)
}

// PresenceService is only meaningful on the persistent path: a stateless
// call has no connection to attach. Attach returns the online set announced
// to the freshly logged-in party.
type PresenceService struct {
	engine *runtime.Engine
}

func NewPresenceService(engine *runtime.Engine) IPresenceService {
	return &PresenceService{engine: engine}
}

func (s *PresenceService) Attach(handle, connID string, sink contract.EventSink) []string {
	return s.engine.Attach(handle, connID, sink)
}

func (s *PresenceService) Detach(connID string) (string, bool) {
	return s.engine.Detach(connID)
}
