package evaluator

import (
	"errors"
	"fmt"
)

// ErrMalformedVerdict is wrapped when a collaborator returns output the
// gate cannot use.
var ErrMalformedVerdict = errors.New("malformed evaluation verdict")

// RetryableError marks a collaborator failure that left no trace in the
// session. The caller may retry the same interaction.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s (retryable): %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
