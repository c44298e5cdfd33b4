package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/model"
)

// OperatorKey is the gin context key holding the authenticated operator.
const OperatorKey = "operator"

// ErrUnauthorized is reported when an operator token is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SyncFailureResponse is the body of a sync job that failed as a whole. It
// carries whatever the run reconciled before failing.
type SyncFailureResponse struct {
	ErrorResponse
	Report model.SyncReport `json:"report"`
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, model.ErrSlotsUnknown), errors.Is(err, model.ErrRoundUnknown):
		return http.StatusNotFound, "ledger metadata unavailable"
	case errors.Is(err, model.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid address"
	case errors.Is(err, model.ErrUnknownJob):
		return http.StatusBadRequest, "unknown job"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Abort writes err as an ErrorResponse and stops the handler chain.
func Abort(c *gin.Context, err error) {
	code, message := statusOf(err)
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message, Details: err.Error()})
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, _ := statusOf(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	Abort(c, err)
}
