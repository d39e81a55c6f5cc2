package identity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRejectedError_Message(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "message field", status: 400, body: `{"message":"Bad credentials","error":"ignored"}`, want: "Bad credentials"},
		{name: "error field", status: 401, body: `{"error":"Unauthorized"}`, want: "Unauthorized"},
		{name: "empty body", status: 502, body: ``, want: "Request failed with status code 502"},
		{name: "non json body", status: 500, body: `<html>oops</html>`, want: "Request failed with status code 500"},
		{name: "empty fields", status: 409, body: `{"message":""}`, want: "Request failed with status code 409"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newRejectedError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, KindRejected, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.NotNil(t, err.Unwrap())
		})
	}
}

func TestNewRejectedError_UserMessage(t *testing.T) {
	assert.Equal(t, UserMessageForbidden, newRejectedError(http.StatusForbidden, nil).UserMessage)
	assert.Equal(t, UserMessageNotFound, newRejectedError(http.StatusNotFound, nil).UserMessage)
	assert.Equal(t, UserMessageServer, newRejectedError(http.StatusInternalServerError, nil).UserMessage)
	assert.Empty(t, newRejectedError(http.StatusBadRequest, nil).UserMessage)
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := newTransportError(cause)

	assert.Equal(t, "No response received from server", err.Error())
	assert.Equal(t, UserMessageUnreachable, err.Display())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindTransport))
	assert.Zero(t, StatusCode(err))
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("list users: %w", newRejectedError(http.StatusUnauthorized, []byte(`{"message":"expired"}`)))

	assert.True(t, IsUnauthorized(wrapped))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(wrapped))
	assert.True(t, IsKind(wrapped, KindRejected))
	assert.Equal(t, "expired", Display(wrapped))
	assert.Equal(t, "plain", Display(errors.New("plain")))
	assert.Empty(t, Display(nil))
}

func TestErrNoRefreshToken(t *testing.T) {
	err := fmt.Errorf("refresh: %w", ErrNoRefreshToken)

	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.True(t, IsKind(err, KindPrecondition))
	assert.Equal(t, "No refresh token available", ErrNoRefreshToken.Error())
	assert.NotErrorIs(t, newTransportError(nil), ErrNoRefreshToken)
}
