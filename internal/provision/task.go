// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
)

const (
	// DirectionInput moves a source into the staging directory.
	DirectionInput Direction = "input"
	// DirectionOutput moves a produced file to its destination.
	DirectionOutput Direction = "output"
)

var (
	// ErrOutputNotProduced is recorded when a bound output is missing from
	// the engine's results.
	ErrOutputNotProduced = errors.New("output was not produced by the workflow")
	// ErrSecondaryFailed is recorded for a primary whose secondary files
	// could not all be delivered.
	ErrSecondaryFailed = errors.New("secondary file transfer failed")
)

type (
	// Direction tells whether a task stages an input or delivers an output.
	Direction string

	// Task is one transfer. Secondary files travel with their primary: for
	// inputs the primary is staged first; for outputs every secondary is
	// delivered before the primary counts as done.
	Task struct {
		Direction   Direction
		Key         string
		Source      Location
		Destination Location
		IsDirectory bool

		SecondaryFiles []*Task
	}

	// TransferError records a failed task.
	TransferError struct {
		Direction   Direction
		Key         string
		Source      string
		Destination string
		Err         error
	}
)

func (t *Task) fail(err error) *TransferError {
	return &TransferError{
		Direction:   t.Direction,
		Key:         t.Key,
		Source:      t.Source.Raw,
		Destination: t.Destination.Raw,
		Err:         err,
	}
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	src := e.Source
	if src == "" {
		src = e.Key
	}
	return fmt.Sprintf("%s %s -> %s: %v", e.Direction, src, e.Destination, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransferError) Unwrap() error { return e.Err }
