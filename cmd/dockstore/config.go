// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ctb/dockstore/internal/config"
	"github.com/ctb/dockstore/internal/issue"
)

// newConfigCommand creates the `dockstore config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dockstore configuration",
		Long: `Manage dockstore configuration.

Configuration is stored in:
  - Linux: ~/.config/dockstore/config.cue
  - macOS: ~/Library/Application Support/dockstore/config.cue
  - Windows: %APPDATA%\dockstore\config.cue

Every key can also be set with a DOCKSTORE_ environment variable,
for example DOCKSTORE_PROVISION_CONCURRENCY=8.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlags) error {
	loaded, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(app.stderr, rendered)
		return err
	}
	cfg := loaded.Config

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	out := app.stdout

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if loaded.Source != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), loaded.Source)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	cacheDir, dirErr := config.CacheDir(cfg)
	if dirErr != nil {
		cacheDir = "(unavailable)"
	}
	maxSize := "unbounded"
	if cfg.Cache.MaxSizeMB > 0 {
		maxSize = strconv.Itoa(cfg.Cache.MaxSizeMB) + " MB"
	}
	maxAge := cfg.Cache.MaxAge
	if maxAge == "" {
		maxAge = "never expires"
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("cache"))
	fmt.Fprintf(out, "  enabled: %s\n", valueStyle.Render(strconv.FormatBool(cfg.Cache.Enabled)))
	fmt.Fprintf(out, "  dir: %s\n", valueStyle.Render(cacheDir))
	fmt.Fprintf(out, "  max_size_mb: %s\n", valueStyle.Render(maxSize))
	fmt.Fprintf(out, "  max_age: %s\n", valueStyle.Render(maxAge))

	workDir := cfg.Provision.WorkDir
	if workDir == "" {
		workDir = "(system temp directory)"
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("provision"))
	fmt.Fprintf(out, "  strict: %s\n", valueStyle.Render(strconv.FormatBool(cfg.Provision.Strict)))
	fmt.Fprintf(out, "  concurrency: %s\n", valueStyle.Render(strconv.Itoa(cfg.Provision.Concurrency)))
	fmt.Fprintf(out, "  retries: %s\n", valueStyle.Render(strconv.Itoa(cfg.Provision.Retries)))
	fmt.Fprintf(out, "  work_dir: %s\n", valueStyle.Render(workDir))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("engines"))
	for _, e := range []struct {
		name string
		cfg  config.EngineConfig
	}{{"cwl", cfg.Engines.CWL}, {"wdl", cfg.Engines.WDL}} {
		command := e.cfg.Command
		if command == "" {
			command = "(built-in)"
		}
		fmt.Fprintf(out, "  %s: %s\n", e.name, valueStyle.Render(command))
		if e.cfg.SuccessMarker != "" {
			fmt.Fprintf(out, "    success_marker: %s\n", valueStyle.Render(e.cfg.SuccessMarker))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(out, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))

	return nil
}

func initConfig(app *App) error {
	path, created, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App, flags *rootFlags) error {
	if flags.configPath != "" {
		fmt.Fprintf(app.stdout, "Config file: %s\n", flags.configPath)
		return nil
	}
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
	return nil
}
