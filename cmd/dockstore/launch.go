// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/launch"
)

// launchFlags holds the flags of `dockstore launch`.
type launchFlags struct {
	localEntry string
	entry      string
	jsonDoc    string
	yamlDoc    string
	descriptor string
	cache      bool
	strict     bool
	workDir    string
}

// newLaunchCommand creates the `dockstore launch` command.
func newLaunchCommand(app *App, flags *rootFlags) *cobra.Command {
	lf := &launchFlags{}
	launchCmd := &cobra.Command{
		Use:   "launch",
		Short: "Run a CWL or WDL workflow with an inputs document",
		Long: `Run a CWL or WDL workflow with an inputs document.

The entry descriptor is classified as CWL or WDL from its extension and
content. Use --descriptor when the file has no extension or mentions
both languages. Every file named by the inputs document is staged into
a fresh working directory before the engine runs; keys matching declared
outputs are destinations that receive the produced files afterwards.

Exit codes: 0 success, 1 usage or unexpected failure, 2 the format could
not be resolved, 3 the descriptor is missing required sections,
4 staging or delivery failed, 5 the engine failed.`,
		Example: `  dockstore launch --local-entry md5sum.cwl --json md5sum.json
  dockstore launch --local-entry hello.wdl --yaml hello.yaml --cache
  dockstore launch --entry https://example.org/tool.cwl --json in.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, app, flags, lf)
		},
	}

	fs := launchCmd.Flags()
	fs.StringVar(&lf.localEntry, "local-entry", "", "path to a local entry descriptor")
	fs.StringVar(&lf.entry, "entry", "", "URL of a remote entry descriptor")
	fs.StringVar(&lf.jsonDoc, "json", "", "inputs document in JSON")
	fs.StringVar(&lf.yamlDoc, "yaml", "", "inputs document in YAML")
	fs.StringVar(&lf.descriptor, "descriptor", "", "assert the descriptor format (cwl or wdl)")
	fs.BoolVar(&lf.cache, "cache", false, "route remote inputs through the content cache")
	fs.BoolVar(&lf.strict, "strict", false, "fail when any output cannot be delivered")
	fs.StringVar(&lf.workDir, "workdir", "", "parent directory of the per-run staging directory")

	launchCmd.MarkFlagsOneRequired("local-entry", "entry")
	launchCmd.MarkFlagsMutuallyExclusive("local-entry", "entry")
	launchCmd.MarkFlagsOneRequired("json", "yaml")
	launchCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return launchCmd
}

func runLaunch(cmd *cobra.Command, app *App, flags *rootFlags, lf *launchFlags) error {
	ctx := cmd.Context()
	cfg := loadConfig(ctx, app, flags).Config
	verbose := verboseFor(flags, cfg)

	var override descriptor.Format
	if lf.descriptor != "" {
		f, err := descriptor.ParseFormat(lf.descriptor)
		if err != nil {
			return fmt.Errorf("--descriptor: %w", err)
		}
		override = f
	}

	req := LaunchRequest{
		Request: launch.Request{
			EntryPath:      cmp.Or(lf.localEntry, lf.entry),
			InputsDocument: cmp.Or(lf.jsonDoc, lf.yamlDoc),
			Override:       override,
			IsLocalEntry:   lf.localEntry != "",
			UseCache:       lf.cache || cfg.Cache.Enabled,
			WorkDir:        lf.workDir,
			Strict:         lf.strict || cfg.Provision.Strict,
		},
		Config:  cfg,
		Verbose: verbose,
	}

	outcome, err := app.Launches.Launch(ctx, req)
	if outcome != nil {
		app.Diagnostics.Render(ctx, outcome.Warnings, app.stderr)
	}
	if err != nil {
		svcErr, exitErr := launchFailure(err, verbose)
		renderServiceError(app.stderr, svcErr, issueStyle(cfg))
		return exitErr
	}

	if verbose && outcome != nil {
		report := outcome.Report
		fmt.Fprintln(app.stderr, VerboseStyle.Render(fmt.Sprintf(
			"%s workflow: %d output(s) delivered, %d skipped, %d failed",
			outcome.Format.DisplayName(), report.Provisioned, len(report.Skipped), len(report.Failures))))
	}
	return nil
}
