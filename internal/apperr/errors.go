// Package apperr defines the error taxonomy shared by the sync layer.
//
// Callers inspect errors with errors.As:
//
//	var apiErr *apperr.APIError
//	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict { ... }
//
// ValidationError and StateError are raised locally before any network
// I/O. NetworkError and APIError describe a failed exchange with a remote
// service. AuthRequiredError means the caller skipped the session check.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a client-side precondition failure: bad file type
// or size, missing cursor, non-positive seat count.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NetworkError is a transport failure with no HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx HTTP response. Message carries the server's
// "error" field when present.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.Status, e.Message)
}

// StateError is an operation invoked outside its allowed phase or state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s not allowed in state %s", e.Op, e.State)
}

// AuthRequiredError is an operation attempted without a session on the
// channel it needs.
type AuthRequiredError struct {
	Channel string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("auth required: no %s session", e.Channel)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

func IsAuthRequired(err error) bool {
	var target *AuthRequiredError
	return errors.As(err, &target)
}

// StatusOf returns the HTTP status of an APIError in err's chain, or 0.
func StatusOf(err error) int {
	var target *APIError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}

// IsUnauthorized reports a 401 from the API.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// UserMessage maps any error to the single message shown for a failed
// action.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	var network *NetworkError
	var api *APIError
	var state *StateError
	var auth *AuthRequiredError

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &auth):
		return fmt.Sprintf("please log in as %s to continue", auth.Channel)
	case errors.As(err, &state):
		return "this action is not available right now"
	case errors.As(err, &network):
		return "Network error. Please check your connection."
	case errors.As(err, &api):
		switch {
		case api.Status == http.StatusUnauthorized:
			return "invalid email or password"
		case api.Message != "":
			return api.Message
		default:
			return "Something went wrong. Please try again."
		}
	default:
		return "Something went wrong. Please try again."
	}
}
