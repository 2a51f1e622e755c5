// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ctb/dockstore/internal/cache"
	"github.com/ctb/dockstore/internal/config"
)

// newCacheCommand creates the `dockstore cache` command tree.
func newCacheCommand(app *App, flags *rootFlags) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and trim the content cache",
		Long: `Inspect and trim the content cache.

Remote inputs fetched with --cache (or cache.enabled in config.cue) are
kept here keyed by their URL and version, and reused by later launches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached entries, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, app, flags, func(c *cache.Cache) error {
				listCache(app, c, time.Now())
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Evict expired entries and entries over the size bound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, app, flags, func(c *cache.Cache) error {
				report, err := c.Prune()
				if err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s Removed %d entries, freed %s\n",
					SuccessStyle.Render("✓"), report.Removed, units.HumanSize(float64(report.Freed)))
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, app, flags, func(c *cache.Cache) error {
				entries := c.Entries()
				for _, e := range entries {
					if err := c.Remove(e.Signature); err != nil {
						return err
					}
				}
				fmt.Fprintf(app.stdout, "%s Removed %d entries\n", SuccessStyle.Render("✓"), len(entries))
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd.Context(), app, flags).Config
			dir, err := config.CacheDir(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	return cacheCmd
}

// withCache opens the configured cache for the duration of fn.
func withCache(cmd *cobra.Command, app *App, flags *rootFlags, fn func(*cache.Cache) error) (err error) {
	cfg := loadConfig(cmd.Context(), app, flags).Config
	c, err := openCache(cfg, newLogger(app.stderr, verboseFor(flags, cfg)))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(c)
}

func listCache(app *App, c *cache.Cache, now time.Time) {
	entries := c.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("(cache is empty)"))
		return
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render(fmt.Sprintf("%d entries, %s", len(entries), units.HumanSize(float64(c.Size())))))
	for _, e := range entries {
		source := e.Source
		if source == "" {
			source = SubtitleStyle.Render("(unknown source)")
		}
		fmt.Fprintf(app.stdout, "%s  %8s  %-16s  %s\n",
			CmdStyle.Render(e.Signature.Short()),
			units.HumanSize(float64(e.Size)),
			strings.ToLower(units.HumanDuration(now.Sub(e.LastAccessed)))+" ago",
			source)
	}
}
