package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/kurisync/internal/model"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode int
		wantMsg  string
	}{
		{name: "not found", in: fmt.Errorf("failed to get user: %w", model.ErrNotFound), wantCode: http.StatusNotFound, wantMsg: "not found"},
		{name: "slots unknown", in: model.ErrSlotsUnknown, wantCode: http.StatusNotFound, wantMsg: "ledger metadata unavailable"},
		{name: "round unknown", in: model.ErrRoundUnknown, wantCode: http.StatusNotFound, wantMsg: "ledger metadata unavailable"},
		{name: "invalid address", in: fmt.Errorf("%w: %q", model.ErrInvalidAddress, "0x1"), wantCode: http.StatusBadRequest, wantMsg: "invalid address"},
		{name: "unknown job", in: model.ErrUnknownJob, wantCode: http.StatusBadRequest, wantMsg: "unknown job"},
		{name: "unauthorized", in: fmt.Errorf("%w: expired", ErrUnauthorized), wantCode: http.StatusUnauthorized, wantMsg: "unauthorized"},
		{name: "missing round is internal", in: model.ErrMissingRound, wantCode: http.StatusInternalServerError, wantMsg: "internal server error"},
		{name: "other", in: errors.New("boom"), wantCode: http.StatusInternalServerError, wantMsg: "internal server error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, msg := statusOf(tt.in)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
