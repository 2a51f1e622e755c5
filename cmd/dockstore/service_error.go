// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ctb/dockstore/internal/dispatch"
	"github.com/ctb/dockstore/internal/issue"
	"github.com/ctb/dockstore/internal/launch"
	"github.com/ctb/dockstore/internal/provision"
	"github.com/ctb/dockstore/pkg/types"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the issue help
// section rendered in the given glamour style.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, style string) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(style)
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// launchFailure converts a launch error into the ServiceError rendered by
// the CLI and the ExitError returned to Execute. Errors that do not carry
// a launch category exit with the generic code.
func launchFailure(err error, verbose bool) (*ServiceError, *ExitError) {
	code := types.ExitGeneric
	var id issue.Id
	var coded launch.Coded
	if errors.As(err, &coded) {
		code = coded.ExitCode()
		id = coded.IssueID()
	}

	ae := describeLaunchError(err)
	// The headline is printed by Execute; only the details are rendered here.
	details := strings.TrimPrefix(ae.Format(verbose), ae.Error())
	var styled string
	if details = strings.TrimLeft(details, "\n"); details != "" {
		styled = VerboseStyle.Render(details) + "\n"
	}
	svcErr := newServiceError(ae, id, styled)
	return svcErr, &ExitError{Code: code, Err: svcErr}
}

// describeLaunchError attaches the failed step and remediation hints to a
// launch error.
func describeLaunchError(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().Wrap(err)
	var (
		classErr *launch.ClassificationError
		valErr   *launch.ValidationError
		provErr  *launch.ProvisioningError
		execErr  *launch.ExecutionError
	)
	switch {
	case errors.As(err, &classErr):
		ctx.WithOperation("resolve descriptor format")
		if f := classErr.Resolution.File; f != nil {
			ctx.WithResource(f.Path)
		}
		ctx.WithSuggestion("Name the entry file with a .cwl or .wdl extension").
			WithSuggestion("Or assert the format with --descriptor cwl|wdl")
	case errors.As(err, &valErr):
		ctx.WithOperation("validate descriptor").
			WithResource(valErr.Path).
			WithSuggestion("Add the missing sections listed above to the descriptor")
	case errors.As(err, &provErr):
		ctx.WithOperation("transfer workflow files")
		if errors.Is(err, provision.ErrInvalidDocument) {
			ctx.WithSuggestion("Check that the inputs document is a JSON or YAML object")
		} else {
			ctx.WithSuggestion("Check that every location exists and is reachable")
			ctx.WithSuggestion("Run with --verbose to see each transfer attempt")
		}
	case errors.As(err, &execErr):
		ctx.WithOperation("run workflow")
		if errors.Is(err, dispatch.ErrEngineNotFound) {
			ctx.WithSuggestion("Install the engine or set engines.<format>.command in config.cue")
		} else {
			ctx.WithSuggestion("Inspect the engine output above for the failing step")
		}
	default:
		ctx.WithOperation("launch workflow")
	}
	return ctx.Build()
}
