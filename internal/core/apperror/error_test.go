package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("save sale: %w", NewPersistenceFailure("upsert", cause))

	require.True(t, IsPersistenceFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.False(t, IsRemoteUnavailable(err))
}

func TestAppError_EditWindowDetails(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := NewEditWindowExpired("sale", "s-1", created, 2*time.Hour)

	assert.Equal(t, CodeEditWindowExpired, err.Code)
	assert.Equal(t, "s-1", err.Details["id"])
	assert.Equal(t, "2h0m0s", err.Details["window"])
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"already open", NewAlreadyOpen("2026-03-01"), CodeAlreadyOpen, true},
		{"not closed", NewNotClosed("2026-03-01"), CodeNotClosed, true},
		{"mismatch", NewNotOpen("2026-03-01"), CodeNotClosed, false},
		{"plain error", errors.New("boom"), CodeInternal, false},
		{"nil", nil, CodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCode(tt.err, tt.code))
		})
	}
}

func TestGetHTTPStatus_NonAppError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("x")))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewValidation("bad")))
}
