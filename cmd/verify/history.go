package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/pkg/verifier/config"
	"github.com/jamesainslie/verifier/pkg/verifier/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past runs",
	Long: `View the history of verify and create runs.

Each run is recorded with its summary and the entries that failed.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a run",
	Long:  `Display a run by its ID. A unique prefix of the ID is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old runs",
	Long:  `Remove runs older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDays  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")
	historyCleanCmd.Flags().IntVar(&historyDays, "days", 0, "retention in days (default: history.retention_days)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Log, error) {
	log, err := history.New(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return log, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, _ []string) error {
	log, err := openHistory()
	if err != nil {
		return err
	}
	runs, err := log.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		fmt.Fprintln(out, "Run 'verify <list>' to verify files.")
		return nil
	}

	fmt.Fprintf(out, "\n%-12s  %-6s  %-16s  %-22s  %s\n", "ID", "TYPE", "WHEN", "RESULT", "LIST")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, r := range runs {
		result := fmt.Sprintf("%d/%d good", r.Summary.Good, r.Summary.Total)
		if r.Interrupted {
			result += " (stopped)"
		}
		fmt.Fprintf(out, "%-12s  %-6s  %-16s  %-22s  %s\n",
			truncateString(r.ID, 12),
			r.Operation,
			humanize.Time(r.Started),
			result,
			r.Manifest,
		)
	}
	fmt.Fprintln(out, strings.Repeat("-", 90))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(runs))
	fmt.Fprintln(out, "Use 'verify history show <id>' for details on a specific run.")
	return nil
}

// runHistoryShow displays one run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	log, err := openHistory()
	if err != nil {
		return err
	}
	run, err := log.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	return run.WriteText(cmd.OutOrStdout())
}

// runHistoryClean removes runs older than the retention period.
func runHistoryClean(cmd *cobra.Command, _ []string) error {
	log, err := openHistory()
	if err != nil {
		return err
	}

	days := historyDays
	if days <= 0 {
		days = cfg.History.RetentionDays
	}
	if days <= 0 {
		days = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", days)
	n, err := log.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d entries.", n)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
