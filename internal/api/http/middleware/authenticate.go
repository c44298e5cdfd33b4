package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/api/http/handler"
	"github.com/dtroode/kurisync/internal/logger"
)

// TokenService resolves the operator behind an Authorization header.
type TokenService interface {
	Authenticate(header string) (string, error)
}

// Authenticate guards operator endpoints with a bearer token.
type Authenticate struct {
	tokenService TokenService
	logger       *logger.Logger
}

func NewAuthenticate(tokenService TokenService, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, logger: logger}
}

// Handle stores the operator under handler.OperatorKey or aborts with 401.
func (m *Authenticate) Handle(c *gin.Context) {
	operator, err := m.tokenService.Authenticate(c.GetHeader("Authorization"))
	if err != nil {
		m.logger.Warn("rejected operator request", "path", c.Request.URL.Path, "error", err)
		handler.Abort(c, fmt.Errorf("%w: %w", handler.ErrUnauthorized, err))
		return
	}

	c.Set(handler.OperatorKey, operator)
	c.Next()
}
