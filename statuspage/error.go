package statuspage

import (
	"errors"
	"fmt"
)

// Returned before any network I/O when the client has no API key configured.
var ErrAPIKeyMissing = errors.New("API key not configured")

// APIError represents a non-2xx response from the status provider. The error body is
// captured best-effort: both Name and Message may be empty if the provider returned
// something other than its usual JSON error envelope.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (ae *APIError) Error() string {
	if ae.StatusCode > 0 {
		if ae.Name != "" && ae.Message != "" {
			return fmt.Sprintf("provider request failed (HTTP %d): %s: %s", ae.StatusCode, ae.Name, ae.Message)
		} else if ae.Name != "" {
			return fmt.Sprintf("provider request failed (HTTP %d): %s", ae.StatusCode, ae.Name)
		}
		return fmt.Sprintf("provider request failed (HTTP %d)", ae.StatusCode)
	}
	return "provider request failed"
}

type ErrorBody struct {
	Name    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (eb *ErrorBody) APIError(statusCode int) error {
	return &APIError{
		StatusCode: statusCode,
		Name:       eb.Name,
		Message:    eb.Message,
	}
}
