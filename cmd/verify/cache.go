package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/pkg/verifier/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the incremental cache",
	Long: `Commands for managing the cache used by --incremental.

The cache remembers the size, modification time and digest of files that
verified good, so unchanged files can be skipped on the next run. It is
stored in the XDG cache directory (typically ~/.cache/verifier/state).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached results",
	Long:  `Removes every cached result. The next incremental run hashes every file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *cache.Cache) error {
			n, err := c.Clear()
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries).\n", n)
			return nil
		})
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <dir>",
	Short: "Forget cached results under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return withCache(func(c *cache.Cache) error {
			n, err := c.Forget(dir)
			if err != nil {
				return fmt.Errorf("failed to forget %s: %w", dir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d entries under %s.\n", n, dir)
			return nil
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, the number of results and their age.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *cache.Cache) error {
			st, err := c.Stats()
			if err != nil {
				return fmt.Errorf("failed to read cache: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache location: %s\n", cfg.Cache.Path)
			fmt.Fprintf(out, "Entries:        %s\n", humanize.Comma(int64(st.Entries)))
			fmt.Fprintf(out, "Good:           %s\n", humanize.Comma(int64(st.Good)))
			fmt.Fprintf(out, "Failed:         %s\n", humanize.Comma(int64(st.Failed)))
			if st.Entries > 0 {
				fmt.Fprintf(out, "Oldest:         %s\n", humanize.Time(st.Oldest))
				fmt.Fprintf(out, "Newest:         %s\n", humanize.Time(st.Newest))
			}
			return nil
		})
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Path)
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// withCache opens the configured cache for the duration of fn.
func withCache(fn func(*cache.Cache) error) error {
	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}
