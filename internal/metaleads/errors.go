package metaleads

import (
	"errors"
	"fmt"
)

// ErrNotFound means the Graph object does not exist or is no longer readable.
var ErrNotFound = errors.New("meta: object not found")

// TransientError wraps failures worth retrying on a later pass:
// network errors, timeouts, throttling and 5xx responses.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("meta: %s: transient status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("meta: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// APIError is a non-retryable Graph error response.
type APIError struct {
	StatusCode int
	Code       int
	Subcode    int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta: graph error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
}
