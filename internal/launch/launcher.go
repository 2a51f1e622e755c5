// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ctb/dockstore/internal/cache"
	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/dispatch"
	"github.com/ctb/dockstore/internal/provision"
)

type (
	// Request describes one launch.
	Request struct {
		// EntryPath is the descriptor path, or a URI when IsLocalEntry is false.
		EntryPath string
		// InputsDocument is the JSON or YAML inputs document.
		InputsDocument string
		// Override asserts the descriptor format; empty means detect.
		Override descriptor.Format
		IsLocalEntry bool
		// UseCache routes remote inputs through the content cache.
		UseCache bool
		// WorkDir is the parent of the per-run staging directory. Empty
		// falls back to the launcher's default.
		WorkDir string
		// Strict fails the launch when any output could not be delivered.
		Strict bool
	}

	// Outcome describes a completed launch.
	Outcome struct {
		Format     descriptor.Format
		Resolution descriptor.Resolution
		// Warnings are diagnostics for the user; they never fail a launch.
		Warnings []string
		Staged   *provision.StagedInputs
		Result   *dispatch.Result
		Report   provision.Report
	}

	// Launcher runs launches. It is safe for sequential reuse.
	Launcher struct {
		dispatcher    *dispatch.Dispatcher
		cache         *cache.Cache
		workDir       string
		provisionOpts []provision.Option
		logger        *log.Logger
	}

	// Option configures a Launcher.
	Option func(*Launcher)
)

// New creates a Launcher running engines through d.
func New(d *dispatch.Dispatcher, opts ...Option) *Launcher {
	l := &Launcher{
		dispatcher: d,
		logger:     log.NewWithOptions(io.Discard, log.Options{Prefix: "launch"}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithCache sets the cache used when a request asks for it.
func WithCache(c *cache.Cache) Option {
	return func(l *Launcher) {
		l.cache = c
	}
}

// WithWorkDir sets the default staging parent directory.
func WithWorkDir(dir string) Option {
	return func(l *Launcher) {
		l.workDir = dir
	}
}

// WithProvisionOptions adds options applied to every provisioning engine
// the launcher creates.
func WithProvisionOptions(opts ...provision.Option) Option {
	return func(l *Launcher) {
		l.provisionOpts = append(l.provisionOpts, opts...)
	}
}

// WithLogger sets the launcher's logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Launch runs req to completion. On failure the returned Outcome holds
// whatever was done before the failing step, and the error implements
// Coded.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = l.workDir
	}

	entry := req.EntryPath
	if !req.IsLocalEntry {
		fetched, err := l.fetchEntry(ctx, entry, workDir)
		if err != nil {
			return out, &ProvisioningError{Stage: StageEntry, Err: err}
		}
		entry = fetched
	}

	res := descriptor.Classify(entry, req.Override)
	out.Resolution = res
	out.Warnings = res.Warnings()
	if !res.Resolved() {
		return out, &ClassificationError{Resolution: res, Err: res.Err()}
	}
	out.Format = res.Format
	l.logger.Debug("descriptor resolved", "path", entry, "format", res.Format, "notes", res.Notes)

	content := res.File.Content
	if err := descriptor.Validate(content, res.Format); err != nil {
		return out, &ValidationError{Path: entry, Format: res.Format, Err: err}
	}
	// Only the markers are checked here; a descriptor that cannot be
	// decoded is still handed to the engine, which reports the syntax error.
	outputIDs, err := descriptor.DeclaredOutputs(res.Format, content)
	if err != nil {
		l.logger.Warn("cannot read declared outputs", "path", entry, "error", err)
		out.Warnings = append(out.Warnings, fmt.Sprintf("Could not read the outputs declared in %s; no outputs will be provisioned: %v", entry, err))
		outputIDs = nil
	}
	fileKeys, err := descriptor.FileInputs(res.Format, content)
	if err != nil {
		l.logger.Warn("cannot read file inputs", "path", entry, "error", err)
		fileKeys = nil
	}

	opts := append([]provision.Option{}, l.provisionOpts...)
	opts = append(opts,
		provision.WithWorkDir(workDir),
		provision.WithSkipKeys(outputIDs...),
		provision.WithFileKeys(fileKeys...),
		provision.WithLogger(l.logger.WithPrefix("provision")),
	)
	if req.UseCache {
		if l.cache == nil {
			l.logger.Warn("cache requested but not available; fetching directly")
		} else {
			opts = append(opts, provision.WithCache(l.cache))
		}
	}
	engine := provision.New(opts...)

	staged, err := engine.StageInputs(ctx, req.InputsDocument)
	out.Staged = staged
	if err != nil {
		return out, &ProvisioningError{Stage: StageInputs, Err: err}
	}

	descriptorPath, err := filepath.Abs(entry)
	if err != nil {
		return out, &ValidationError{Path: entry, Format: res.Format, Err: err}
	}
	result, err := l.dispatcher.Run(ctx, res.Format, staged, descriptorPath)
	if err != nil {
		return out, &ExecutionError{Err: err}
	}
	out.Result = result
	if !result.Succeeded {
		return out, runFailed(ctx, result)
	}

	report, err := engine.ProvisionOutputs(ctx, staged.Bindings, provision.Produced{
		Succeeded: true,
		Outputs:   result.Outputs,
	})
	out.Report = report
	if err != nil {
		return out, &ProvisioningError{Stage: StageOutputs, Report: &report, Err: err}
	}
	for _, f := range report.Failures {
		l.logger.Warn("output not provisioned", "key", f.Key, "error", f.Err)
	}
	if err := report.Err(req.Strict); err != nil {
		return out, &ProvisioningError{Stage: StageOutputs, Report: &report, Err: err}
	}
	return out, nil
}

// fetchEntry downloads a remote descriptor into its own directory under
// workDir, keeping the file name so the extension still counts.
func (l *Launcher) fetchEntry(ctx context.Context, raw, workDir string) (string, error) {
	loc := provision.ParseLocation(raw, "")
	parent := workDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "dockstore-entry-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create entry directory: %w", err)
	}
	dst := filepath.Join(dir, loc.Base())
	engine := provision.New(l.provisionOpts...)
	if err := engine.Fetch(ctx, loc, dst); err != nil {
		return "", fmt.Errorf("fetch entry %s: %w", raw, err)
	}
	l.logger.Debug("fetched entry", "from", raw, "to", dst)
	return dst, nil
}
