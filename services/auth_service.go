package services

import (
	"chat-relay/domain"
	"chat-relay/runtime"
)

type IAuthService interface {
	Register(cmd domain.RegisterCommand) error
	Login(cmd domain.LoginCommand) (bool, error)
}

// AuthService exposes registration and credential checks identically to
// both gateways. Secrets are compared exact-match: reproducing the relay's
// shared-secret contract, not a password-storage scheme.
type AuthService struct {
	engine *runtime.Engine
}

func NewAuthService(engine *runtime.Engine) IAuthService {
	return &AuthService{engine: engine}
}

func (s *AuthService) Register(cmd domain.RegisterCommand) error {
	return s.engine.Register(cmd)
}

// Login verifies the credential and returns the handle's current online
// state. It never attaches a connection by itself.
func (s *AuthService) Login(cmd domain.LoginCommand) (bool, error) {
	return s.engine.Login(cmd)
}
