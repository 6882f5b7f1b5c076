package logstore

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when writing to a store that has been closed
// (or whose current file could not be reopened after a failed rotation).
var ErrClosed = errors.New("logstore: store is closed")

// WriteError reports a failed append to the current file. The record was
// not persisted. The store does not retry; the caller decides whether to
// drop or retry the record.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("logstore: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RotationError reports a failure while demoting the current file or
// cleaning up stale history. The record that triggered the rotation was
// still written to a valid file; only the housekeeping failed.
type RotationError struct {
	Path string
	Err  error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("logstore: rotate %s: %v", e.Path, e.Err)
}

func (e *RotationError) Unwrap() error { return e.Err }
