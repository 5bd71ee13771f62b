package cansniff

import (
	"errors"
	"fmt"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var ue unrecoverableError
	return !errors.As(err, &ue)
}

var (
	ErrDroppedFrame    = errors.New("frame queue full, frame dropped")
	ErrEvictedFrame    = errors.New("frame queue full, oldest frame evicted")
	ErrSourceClosed    = errors.New("source closed")
	ErrUnknownSource   = errors.New("unknown source")
	ErrInvalidOverflow = errors.New("invalid overflow policy")
)

// WriteError is reported when the sink rejects an encoded record.
type WriteError struct {
	Record string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %q: %v", e.Record, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
