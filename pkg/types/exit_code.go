// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Exit codes returned by the dockstore command. Each failure category of a
// launch maps to its own code so scripts can tell them apart.
const (
	ExitSuccess        ExitCode = 0
	ExitGeneric        ExitCode = 1
	ExitClassification ExitCode = 2
	ExitValidation     ExitCode = 3
	ExitProvisioning   ExitCode = 4
	ExitExecution      ExitCode = 5
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Category names the launch phase an exit code belongs to.
func (c ExitCode) Category() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitClassification:
		return "classification"
	case ExitValidation:
		return "validation"
	case ExitProvisioning:
		return "provisioning"
	case ExitExecution:
		return "execution"
	default:
		return "error"
	}
}
