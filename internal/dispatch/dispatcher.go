// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/provision"
)

const (
	// OutputDirName is the engine output directory inside the staging dir.
	OutputDirName = "outputs"
	// MetadataFileName is the engine metadata file inside the staging dir.
	MetadataFileName = "metadata.json"

	killGrace = 5 * time.Second
)

type (
	// Dispatcher runs workflow engines.
	Dispatcher struct {
		engines map[descriptor.Format]EngineSpec
		stdout  io.Writer
		stderr  io.Writer
		env     map[string]string
		logger  *log.Logger
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)

	// Result describes a finished engine run.
	Result struct {
		ExitCode   int
		EngineName string
		Succeeded  bool
		// Canceled is set when the context ended the run.
		Canceled bool
		// Outputs holds produced outputs keyed by output id. It is nil when
		// the run failed or the engine reported nothing readable.
		Outputs map[string]any
	}

	// EngineError is returned when an engine could not be started.
	EngineError struct {
		Engine string
		Argv   []string
		Err    error
	}
)

// New creates a Dispatcher with the built-in engine bindings, streaming
// engine output to os.Stdout and os.Stderr.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engines: make(map[descriptor.Format]EngineSpec),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		env:     make(map[string]string),
		logger:  log.NewWithOptions(io.Discard, log.Options{Prefix: "dispatch"}),
	}
	for _, f := range descriptor.Formats() {
		if spec, err := DefaultEngine(f); err == nil {
			d.engines[f] = spec
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithEngine replaces the binding for f.
func WithEngine(f descriptor.Format, spec EngineSpec) Option {
	return func(d *Dispatcher) {
		d.engines[f] = spec
	}
}

// WithOutput sets where engine output is streamed. The completion line is
// written to stdout.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Dispatcher) {
		if stdout != nil {
			d.stdout = stdout
		}
		if stderr != nil {
			d.stderr = stderr
		}
	}
}

// WithEnv adds variables to the engine environment. They also take part
// in $VAR expansion of command templates.
func WithEnv(env map[string]string) Option {
	return func(d *Dispatcher) {
		maps.Copy(d.env, env)
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Engine returns the binding used for f.
func (d *Dispatcher) Engine(f descriptor.Format) (EngineSpec, error) {
	spec, ok := d.engines[f]
	if !ok {
		return EngineSpec{}, fmt.Errorf("%w: %q", ErrNoEngine, f)
	}
	if ok, errs := spec.IsValid(); !ok {
		return EngineSpec{}, errors.Join(errs...)
	}
	return spec, nil
}

// Run executes the engine bound to f against the staged inputs. The engine
// runs in the staging directory. A non-zero exit, a missing success marker
// or cancellation yield a Result with Succeeded unset and a nil error; an
// error means the engine could not be run at all.
func (d *Dispatcher) Run(ctx context.Context, f descriptor.Format, staged *provision.StagedInputs, descriptorPath string) (*Result, error) {
	spec, err := d.Engine(f)
	if err != nil {
		return nil, err
	}

	data := CommandData{
		Descriptor: descriptorPath,
		Inputs:     staged.DocumentPath,
		OutputDir:  filepath.Join(staged.Dir, OutputDirName),
		Metadata:   filepath.Join(staged.Dir, MetadataFileName),
		WorkDir:    staged.Dir,
	}
	if err := os.MkdirAll(data.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create engine output directory: %w", err)
	}
	argv, err := spec.Argv(data, d.lookupEnv)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("starting engine", "engine", spec.Name, "argv", argv)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = staged.Dir
	cmd.Env = d.environ()
	cmd.Stdout = io.MultiWriter(d.stdout, &stdout)
	cmd.Stderr = io.MultiWriter(d.stderr, &stderr)
	cmd.WaitDelay = killGrace

	result := &Result{EngineName: spec.Name}
	runErr := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		result.Canceled = true
		result.ExitCode = -1
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case errors.Is(runErr, exec.ErrNotFound), errors.Is(runErr, os.ErrNotExist):
		return nil, &EngineError{Engine: spec.Label(), Argv: argv, Err: errors.Join(ErrEngineNotFound, runErr)}
	default:
		return nil, &EngineError{Engine: spec.Label(), Argv: argv, Err: runErr}
	}

	result.Succeeded = runErr == nil && !result.Canceled && markerSeen(spec.SuccessMarker, &stdout, &stderr)
	fmt.Fprintln(d.stdout, CompletionLine(spec.Label(), result.ExitCode, result.Succeeded))

	if result.Succeeded {
		outputs, err := readOutputs(spec.OutputsFrom, stdout.Bytes(), data.Metadata)
		if err != nil {
			d.logger.Warn("engine outputs unreadable", "engine", spec.Name, "error", err)
		}
		result.Outputs = outputs
		d.logger.Debug("engine reported outputs", "ids", slices.Sorted(maps.Keys(outputs)))
	}
	return result, nil
}

// CompletionLine is the line printed after every engine run.
func CompletionLine(engine string, exitCode int, succeeded bool) string {
	status := "failure"
	if succeeded {
		status = "success"
	}
	return fmt.Sprintf("%s exit code: %d (%s)", engine, exitCode, status)
}

func markerSeen(marker string, outputs ...*bytes.Buffer) bool {
	if marker == "" {
		return true
	}
	for _, b := range outputs {
		if bytes.Contains(b.Bytes(), []byte(marker)) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) lookupEnv(name string) string {
	if v, ok := d.env[name]; ok {
		return v
	}
	return os.Getenv(name)
}

func (d *Dispatcher) environ() []string {
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(d.env)) {
		env = append(env, k+"="+d.env[k])
	}
	return env
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Engine, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error { return e.Err }
