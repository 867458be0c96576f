package remote

import (
	"errors"
	"fmt"
)

// ErrInvalidIDCard is returned before any network I/O when an ID card number
// is not exactly 13 digits.
var ErrInvalidIDCard = errors.New("id card number must be exactly 13 digits")

// NetworkError wraps any transport failure or malformed authority payload.
// Callers surface it as a retryable condition, never as a crash.
type NetworkError struct {
	Action string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Action, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func netErr(action string, err error) error {
	return &NetworkError{Action: action, Err: err}
}
