package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/verifier/pkg/verifier/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage verify configuration settings.

Configuration is loaded from:
  1. --config, if given
  2. $XDG_CONFIG_HOME/verifier/config.yaml

Environment variables override config file settings using the VERIFY_ prefix:
  VERIFY_BUFFER_SIZE=1M
  VERIFY_OUTPUT=plain
  VERIFY_CACHE_ENABLED=true`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the merged configuration from defaults, file, environment and flags.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by $VISUAL, then $EDITOR, falling back to 'vi'.
A default file is created first if none exists.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigFile()
}

// runConfigShow prints the effective configuration as YAML.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (using defaults, no file found)")
	}

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	fmt.Fprint(out, string(data))

	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			overrides = append(overrides, kv)
		}
	}
	fmt.Fprintln(out, "\n# Environment overrides:")
	if len(overrides) == 0 {
		fmt.Fprintln(out, "#   (none)")
	}
	for _, kv := range overrides {
		fmt.Fprintf(out, "#   %s\n", kv)
	}
	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if cfgFile != "" {
		path = cfgFile
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path) //nolint:gosec // editor chosen by the user
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'verify config edit' to modify it.")
		return nil
	}
	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Created default config file: %s", path)
	return nil
}
