package tools

import (
	"errors"
	"fmt"
)

// RetryableError is a tool failure the model should see and correct. Any
// other error returned by a tool ends the session.
type RetryableError struct {
	Message string
}

func (e *RetryableError) Error() string {
	return e.Message
}

// Retryable formats a RetryableError.
func Retryable(format string, args ...interface{}) error {
	return &RetryableError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
