// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/ctb/dockstore/internal/cache"
	"github.com/ctb/dockstore/internal/config"
	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/dispatch"
	"github.com/ctb/dockstore/internal/issue"
	"github.com/ctb/dockstore/internal/launch"
	"github.com/ctb/dockstore/internal/provision"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: command handlers receive an App and delegate
	// through its service interfaces.
	App struct {
		Config      ConfigProvider
		Launches    LaunchService
		Diagnostics DiagnosticRenderer
		stdout      io.Writer
		stderr      io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config      ConfigProvider
		Launches    LaunchService
		Diagnostics DiagnosticRenderer
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// LaunchRequest is a launch plus the configuration it runs under.
	LaunchRequest struct {
		launch.Request
		Config  *config.Config
		Verbose bool
	}

	// LaunchService runs a launch request. Implementations stream engine
	// output and transfer events but leave warnings and errors to the CLI
	// layer.
	LaunchService interface {
		Launch(ctx context.Context, req LaunchRequest) (*launch.Outcome, error)
	}

	// DiagnosticRenderer renders launch warnings.
	DiagnosticRenderer interface {
		Render(ctx context.Context, warnings []string, stderr io.Writer)
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Loaded, error)
	}

	launchService struct {
		stdout io.Writer
		stderr io.Writer
	}

	defaultDiagnosticRenderer struct{}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Diagnostics == nil {
		deps.Diagnostics = &defaultDiagnosticRenderer{}
	}
	if deps.Launches == nil {
		deps.Launches = &launchService{stdout: deps.Stdout, stderr: deps.Stderr}
	}

	return &App{
		Config:      deps.Config,
		Launches:    deps.Launches,
		Diagnostics: deps.Diagnostics,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}, nil
}

// Render prints each warning on its own line.
func (r *defaultDiagnosticRenderer) Render(_ context.Context, warnings []string, stderr io.Writer) {
	for _, w := range warnings {
		fmt.Fprintln(stderr, WarningStyle.Render("Warning: ")+w)
	}
}

// Launch builds the dispatcher, cache and launcher described by the
// request's configuration and runs the launch.
func (s *launchService) Launch(ctx context.Context, req LaunchRequest) (*launch.Outcome, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := newLogger(s.stderr, req.Verbose)

	d, err := newDispatcher(cfg, s.stdout, s.stderr, logger)
	if err != nil {
		return nil, err
	}
	workDir, err := config.WorkDir(cfg)
	if err != nil {
		return nil, err
	}

	opts := []launch.Option{
		launch.WithWorkDir(workDir),
		launch.WithLogger(logger.WithPrefix("launch")),
		launch.WithProvisionOptions(
			provision.WithConcurrency(cfg.Provision.Concurrency),
			provision.WithRetries(cfg.Provision.Retries, provision.DefaultRetryBackoff),
			provision.WithEventSink(provision.EventSinkFunc(func(e provision.Event) {
				fmt.Fprintln(s.stdout, e.String())
			})),
		),
	}

	if req.UseCache {
		c, cacheErr := openCache(cfg, logger)
		if cacheErr != nil {
			fmt.Fprintln(s.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(cacheErr, req.Verbose))
		} else {
			defer func() {
				if closeErr := c.Close(); closeErr != nil {
					logger.Warn("failed to close cache", "error", closeErr)
				}
			}()
			opts = append(opts, launch.WithCache(c))
		}
	}

	return launch.New(d, opts...).Launch(ctx, req.Request)
}

// newLogger creates the root component logger: warnings only, or debug
// output when verbose.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{Prefix: "dockstore", Level: level})
}

// newDispatcher binds each format to its configured engine.
func newDispatcher(cfg *config.Config, stdout, stderr io.Writer, logger *log.Logger) (*dispatch.Dispatcher, error) {
	opts := []dispatch.Option{
		dispatch.WithOutput(stdout, stderr),
		dispatch.WithLogger(logger.WithPrefix("dispatch")),
	}
	for _, f := range descriptor.Formats() {
		spec, err := engineSpec(f, cfg.Engines)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithEngine(f, spec))
	}
	return dispatch.New(opts...), nil
}

// engineSpec overlays the configured command and success marker on the
// built-in binding for f.
func engineSpec(f descriptor.Format, engines config.EnginesConfig) (dispatch.EngineSpec, error) {
	spec, err := dispatch.DefaultEngine(f)
	if err != nil {
		return dispatch.EngineSpec{}, err
	}
	override := engines.CWL
	if f == descriptor.FormatWDL {
		override = engines.WDL
	}
	if override.Command != "" {
		spec.Command = override.Command
	}
	if override.SuccessMarker != "" {
		spec.SuccessMarker = override.SuccessMarker
	}
	return spec, nil
}

// openCache opens the content cache with the configured bounds.
func openCache(cfg *config.Config, logger *log.Logger) (*cache.Cache, error) {
	dir, err := config.CacheDir(cfg)
	if err != nil {
		return nil, cacheUnavailable(dir, err)
	}
	maxAge, err := cfg.Cache.MaxAgeDuration()
	if err != nil {
		return nil, cacheUnavailable(dir, err)
	}
	c, err := cache.Open(dir,
		cache.WithMaxBytes(cfg.Cache.MaxBytes()),
		cache.WithMaxAge(maxAge),
		cache.WithLogger(logger.WithPrefix("cache")),
	)
	if err != nil {
		return nil, cacheUnavailable(dir, err)
	}
	return c, nil
}

func cacheUnavailable(dir string, err error) error {
	return issue.NewErrorContext().
		WithOperation("open content cache").
		WithResource(dir).
		WithSuggestion("Check cache.dir and cache.max_age in config.cue").
		Wrap(err).
		BuildError()
}
