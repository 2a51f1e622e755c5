// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/ctb/dockstore/pkg/types"
)

// ExitError carries a process exit code out of a RunE handler so that only
// Execute calls os.Exit.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the underlying message, or "exit status N" without one.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
