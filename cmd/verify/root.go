package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/pkg/verifier/config"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
)

// errFailed reports that a run finished with failing entries. The report
// has already said so, so Execute prints nothing more.
var errFailed = errors.New("verification failed")

var (
	cfgFile string

	// v holds configuration from defaults, file, VERIFY_* and flags.
	v = config.New()

	// cfg is loaded before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "verify [list]",
		Short: "Verify files against a checksum list",
		Long: `Verify reads a file verification list (.sfv, .md5, md5sum, .verify/.vfy)
and checks every listed file against its recorded digest.

By default a progress view is shown while files are hashed, followed by a
report. Exit status is 1 when any entry is bad, missing, the wrong size or
unreadable.

Examples:
  verify release.sfv              # Verify with the progress view
  verify -o json files.md5        # JSON report, no progress view
  verify --detect checksums.txt   # Pick the format from the content
  verify --incremental big.verify # Skip files unchanged since they last passed
  verify --watch release.sfv      # Re-verify whenever listed files change
  verify calc -a sha256 file.iso  # Compute digests
  verify create -f sfv ./dist     # Write a list for a directory`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
		RunE:              runVerify,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/verifier/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().String("buffer-size", "", "hashing block size (e.g. 4K, 1M)")

	_ = v.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("buffer_size", rootCmd.PersistentFlags().Lookup("buffer-size"))

	addVerifyFlags(rootCmd)
}

// setup loads configuration and starts logging for every command.
func setup(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := initLogging(false); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// initLogging (re)starts logging. In TUI mode console output is suppressed
// so it does not tear the progress view.
func initLogging(tuiMode bool) error {
	settings, err := cfg.LoggingSettings()
	if err != nil {
		return err
	}
	settings.TUIMode = tuiMode
	if getVerbose() && settings.ConsoleLevel == "" {
		settings.ConsoleLevel = "debug"
	}
	return logging.Init(settings)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		printError("%v", err)
	}
	return err
}

func getVerbose() bool {
	return v.GetBool("verbose")
}

func getQuiet() bool {
	return v.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printWarning prints to stderr unless quiet mode is enabled.
func printWarning(format string, args ...any) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
