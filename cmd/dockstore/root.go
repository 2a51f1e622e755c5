// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for dockstore.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ctb/dockstore/internal/config"
	"github.com/ctb/dockstore/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the dockstore command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "dockstore",
		Short: "Launch CWL and WDL workflows with staged inputs",
		Long: TitleStyle.Render("dockstore") + SubtitleStyle.Render(" - Launch CWL and WDL workflows with staged inputs") + `

dockstore resolves whether an entry descriptor is CWL or WDL, checks
that it is structurally plausible, stages the files named by an inputs
document, runs cwltool or Cromwell, and delivers declared outputs to the
destinations given in the same document.

` + SubtitleStyle.Render("Examples:") + `
  dockstore launch --local-entry tool.cwl --json inputs.json
  dockstore launch --local-entry hello.wdl --yaml inputs.yaml --cache
  dockstore launch --local-entry Dockstore --json in.json --descriptor cwl
  dockstore convert cwl2json --cwl tool.cwl > inputs.json
  dockstore config show`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/dockstore/config.cue)")

	rootCmd.AddCommand(
		newLaunchCommand(app, flags),
		newConvertCommand(app),
		newCacheCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and exits with the code carried by an
// ExitError. It is called by main.main.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// loadConfig loads configuration for a command. A broken config file is
// reported as a warning and the defaults are used, so that a launch is
// never blocked by an unrelated setting.
func loadConfig(ctx context.Context, app *App, flags *rootFlags) *config.Loaded {
	loaded, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, flags.verbose))
		return &config.Loaded{Config: config.DefaultConfig()}
	}
	return loaded
}

// verboseFor reports whether verbose output is enabled by flag or config.
func verboseFor(flags *rootFlags, cfg *config.Config) bool {
	return flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// issueStyle maps the configured color scheme to a glamour style.
func issueStyle(cfg *config.Config) string {
	if cfg != nil && cfg.UI.ColorScheme == config.ColorSchemeLight {
		return "light"
	}
	return "dark"
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
