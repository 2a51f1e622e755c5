// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/dispatch"
	"github.com/ctb/dockstore/internal/issue"
	"github.com/ctb/dockstore/internal/provision"
	"github.com/ctb/dockstore/pkg/types"
)

const (
	// StageEntry is fetching a remote entry descriptor.
	StageEntry Stage = "entry"
	// StageInputs is staging the inputs document.
	StageInputs Stage = "inputs"
	// StageOutputs is delivering produced outputs.
	StageOutputs Stage = "outputs"
)

type (
	// Stage names the provisioning step that failed.
	Stage string

	// Coded is implemented by every launch error.
	Coded interface {
		error
		ExitCode() types.ExitCode
		IssueID() issue.Id
	}

	// ClassificationError is returned when the descriptor format could not
	// be resolved.
	ClassificationError struct {
		Resolution descriptor.Resolution
		Err        error
	}

	// ValidationError is returned when the descriptor lacks required
	// sections or cannot be read for its declarations.
	ValidationError struct {
		Path   string
		Format descriptor.Format
		Err    error
	}

	// ProvisioningError is returned when staging or delivery failed.
	ProvisioningError struct {
		Stage  Stage
		Report *provision.Report
		Err    error
	}

	// ExecutionError is returned when the engine could not be started or
	// the run did not succeed.
	ExecutionError struct {
		Result *dispatch.Result
		Err    error
	}
)

// ErrRunFailed is wrapped by ExecutionError for runs that finished without
// success.
var ErrRunFailed = errors.New("workflow run failed")

// Error implements the error interface.
func (e *ClassificationError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying cause.
func (e *ClassificationError) Unwrap() error { return e.Err }

// ExitCode returns types.ExitClassification.
func (e *ClassificationError) ExitCode() types.ExitCode { return types.ExitClassification }

// IssueID maps the failure reason to its help entry.
func (e *ClassificationError) IssueID() issue.Id {
	switch e.Resolution.Reason {
	case descriptor.ReasonAmbiguous, descriptor.ReasonNoExtensionNoOverride:
		return issue.EntryAmbiguousId
	case descriptor.ReasonWrongExtensionForced:
		return issue.DescriptorMismatchId
	default:
		return issue.EntryInvalidId
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Err }

// ExitCode returns types.ExitValidation.
func (e *ValidationError) ExitCode() types.ExitCode { return types.ExitValidation }

// IssueID returns issue.MissingFieldsId.
func (e *ValidationError) IssueID() issue.Id { return issue.MissingFieldsId }

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProvisioningError) Unwrap() error { return e.Err }

// ExitCode returns types.ExitProvisioning.
func (e *ProvisioningError) ExitCode() types.ExitCode { return types.ExitProvisioning }

// IssueID distinguishes a broken inputs document from transfer failures.
func (e *ProvisioningError) IssueID() issue.Id {
	if errors.Is(e.Err, provision.ErrInvalidDocument) {
		return issue.InputsDocumentInvalidId
	}
	return issue.ProvisionFailedId
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// ExitCode returns types.ExitExecution.
func (e *ExecutionError) ExitCode() types.ExitCode { return types.ExitExecution }

// IssueID separates a missing engine from a failed run.
func (e *ExecutionError) IssueID() issue.Id {
	if errors.Is(e.Err, dispatch.ErrEngineNotFound) {
		return issue.EngineNotFoundId
	}
	return issue.EngineFailedId
}

func runFailed(ctx context.Context, res *dispatch.Result) *ExecutionError {
	err := fmt.Errorf("%w: %s exited with code %d", ErrRunFailed, res.EngineName, res.ExitCode)
	if res.Canceled {
		err = errors.Join(err, context.Cause(ctx))
	}
	return &ExecutionError{Result: res, Err: err}
}
