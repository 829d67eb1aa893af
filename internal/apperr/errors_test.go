package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	base := &APIError{Op: "create event", Status: http.StatusConflict, Message: "duplicate"}
	wrapped := fmt.Errorf("commit: %w", base)

	var apiErr *APIError
	assert.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, http.StatusConflict, StatusOf(wrapped))
	assert.False(t, IsUnauthorized(wrapped))
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NetworkError{Op: "GET /events", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsNetwork(fmt.Errorf("wrapped: %w", err)))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsValidation(Validation("file", "too large")))
	assert.True(t, IsState(&StateError{Op: "upload", State: "unreserved"}))
	assert.True(t, IsAuthRequired(&AuthRequiredError{Channel: "organizer"}))
	assert.False(t, IsValidation(errors.New("plain")))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", Validation("file", "image size should be less than 5MB"), "image size should be less than 5MB"},
		{"network", &NetworkError{Op: "login", Err: errors.New("dial")}, "Network error. Please check your connection."},
		{"unauthorized", &APIError{Status: http.StatusUnauthorized}, "invalid email or password"},
		{"api message", &APIError{Status: http.StatusBadRequest, Message: "capacity must be positive"}, "capacity must be positive"},
		{"api bare", &APIError{Status: http.StatusInternalServerError}, "Something went wrong. Please try again."},
		{"auth", &AuthRequiredError{Channel: "attendee"}, "please log in as attendee to continue"},
		{"state", &StateError{Op: "commit", State: "reserved"}, "this action is not available right now"},
		{"other", errors.New("boom"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
