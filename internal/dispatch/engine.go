// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"

	"github.com/ctb/dockstore/internal/descriptor"
)

const (
	// OutputsFromStdout reads a JSON object of outputs from standard output.
	OutputsFromStdout OutputsSource = "stdout"
	// OutputsFromMetadata reads the "outputs" object of the metadata file.
	OutputsFromMetadata OutputsSource = "metadata"

	// DefaultCWLCommand runs cwltool.
	DefaultCWLCommand = "cwltool --outdir {{.OutputDir}} {{.Descriptor}} {{.Inputs}}"
	// DefaultCWLSuccessMarker is printed by cwltool after a successful run.
	DefaultCWLSuccessMarker = "Final process status is success"
	// DefaultWDLCommand runs Cromwell in single-workflow mode.
	DefaultWDLCommand = "java -jar ${CROMWELL_JAR} run {{.Descriptor}} --inputs {{.Inputs}} --metadata-output {{.Metadata}}"
)

var (
	// ErrInvalidEngineSpec is the sentinel wrapped by InvalidEngineSpecError.
	ErrInvalidEngineSpec = errors.New("invalid engine spec")
	// ErrEngineNotFound is returned when the engine executable is missing.
	ErrEngineNotFound = errors.New("workflow engine not found")
	// ErrNoEngine is returned for a format without a bound engine.
	ErrNoEngine = errors.New("no engine bound to format")
)

type (
	// OutputsSource tells where an engine reports produced outputs.
	OutputsSource string

	// EngineSpec binds a descriptor format to an external engine.
	EngineSpec struct {
		// Name identifies the engine in logs, e.g. "cwltool".
		Name string
		// DisplayName is used in the completion line, e.g. "Cromwell".
		DisplayName string
		// Command is a text/template rendered with CommandData and then
		// split into argv with shell word rules.
		Command string
		// SuccessMarker must appear in the engine's output for the run to
		// count as successful. Empty means the exit code decides alone.
		SuccessMarker string
		// OutputsFrom selects where produced outputs are read from.
		OutputsFrom OutputsSource
	}

	// InvalidEngineSpecError is returned when an EngineSpec cannot be used.
	InvalidEngineSpecError struct {
		Name   string
		Reason string
	}
)

// DefaultEngine returns the built-in binding for f. This is the only place
// that chooses an engine by format.
func DefaultEngine(f descriptor.Format) (EngineSpec, error) {
	switch f {
	case descriptor.FormatCWL:
		return EngineSpec{
			Name:          "cwltool",
			DisplayName:   "cwltool",
			Command:       DefaultCWLCommand,
			SuccessMarker: DefaultCWLSuccessMarker,
			OutputsFrom:   OutputsFromStdout,
		}, nil
	case descriptor.FormatWDL:
		return EngineSpec{
			Name:        "cromwell",
			DisplayName: "Cromwell",
			Command:     DefaultWDLCommand,
			OutputsFrom: OutputsFromMetadata,
		}, nil
	default:
		return EngineSpec{}, fmt.Errorf("%w: %q", ErrNoEngine, f)
	}
}

// IsValid returns whether the engine binding can be run, and the problems if not.
func (s EngineSpec) IsValid() (bool, []error) {
	var errs []error
	if s.Name == "" {
		errs = append(errs, &InvalidEngineSpecError{Name: s.Name, Reason: "name is empty"})
	}
	if s.Command == "" {
		errs = append(errs, &InvalidEngineSpecError{Name: s.Name, Reason: "command is empty"})
	}
	switch s.OutputsFrom {
	case OutputsFromStdout, OutputsFromMetadata:
	default:
		errs = append(errs, &InvalidEngineSpecError{
			Name:   s.Name,
			Reason: fmt.Sprintf("unknown outputs source %q", s.OutputsFrom),
		})
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// Label returns DisplayName, falling back to Name.
func (s EngineSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Error implements the error interface.
func (e *InvalidEngineSpecError) Error() string {
	return fmt.Sprintf("engine %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidEngineSpec for errors.Is() compatibility.
func (e *InvalidEngineSpecError) Unwrap() error { return ErrInvalidEngineSpec }
