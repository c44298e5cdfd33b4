package service

import (
	"fmt"
	"strings"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
)

// TokenService issues and checks the operator tokens guarding sync triggers.
type TokenService struct {
	manager model.TokenManager
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, logger: logger}
}

func (s *TokenService) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	token, err := s.manager.GenerateOperatorToken(subject)
	if err != nil {
		return "", fmt.Errorf("issue operator token: %w", err)
	}

	s.logger.Info("operator token issued", "subject", subject)
	return token, nil
}

// Authenticate accepts a raw token or an "Authorization" header value and
// returns the operator it was issued to.
func (s *TokenService) Authenticate(header string) (string, error) {
	token := strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "Bearer") {
		token = strings.TrimSpace(rest)
	}
	if token == "" || strings.EqualFold(token, "Bearer") {
		return "", fmt.Errorf("missing operator token")
	}

	subject, err := s.manager.ParseOperatorToken(token)
	if err != nil {
		s.logger.Warn("operator token rejected", "error", err)
		return "", err
	}
	return subject, nil
}
