package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/calculator"
)

var (
	calcAlgorithms []string
	calcText       string
	calcOutput     string
)

var calcCmd = &cobra.Command{
	Use:   "calc [file]",
	Short: "Compute digests of a file, text or stdin",
	Long: `Compute one or more digests in a single pass over the input.

With no file and no --text, standard input is read. Algorithms default to
the configured list.

Examples:
  verify calc release.iso
  verify calc -a sha256 -a blake3 release.iso
  verify calc --text "hello" -a md5
  cat data.bin | verify calc -a crc32 -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringArrayVarP(&calcAlgorithms, "algorithm", "a", nil, "algorithm to compute (repeatable, comma-separated)")
	calcCmd.Flags().StringVar(&calcText, "text", "", "hash this text instead of a file")
	calcCmd.Flags().StringVarP(&calcOutput, "output", "o", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(calcCmd)
}

// calcIDs resolves the requested algorithms, falling back to the config.
func calcIDs(names []string) ([]algorithm.ID, error) {
	var flat []string
	for _, n := range names {
		flat = append(flat, parseCommaSeparated(n)...)
	}
	if len(flat) == 0 {
		return cfg.AlgorithmIDs()
	}
	ids := make([]algorithm.ID, 0, len(flat))
	for _, n := range flat {
		id, err := algorithm.Parse(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	ids, err := calcIDs(calcAlgorithms)
	if err != nil {
		return err
	}
	bufSize, err := cfg.BufferBytes()
	if err != nil {
		return err
	}

	calc := calculator.New(algorithm.Default)
	if err := calc.SetBufferSize(bufSize); err != nil {
		return err
	}
	for _, id := range ids {
		if err := calc.Add(id); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var input string
	switch {
	case calcText != "":
		input = fmt.Sprintf("text (%d characters)", len([]rune(calcText)))
		err = calc.ComputeText(calcText)
	case len(args) == 1:
		input = args[0]
		err = computeFile(ctx, calc, args[0])
	default:
		input = "stdin"
		err = calc.ComputeReader(ctx, cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	return writeCalcResults(cmd.OutOrStdout(), calc, input, time.Since(start))
}

func computeFile(ctx context.Context, calc *calculator.Calculator, path string) error {
	f, err := os.Open(path) //nolint:gosec // user-supplied path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return calc.ComputeReader(ctx, f)
}

func writeCalcResults(w io.Writer, calc *calculator.Calculator, input string, elapsed time.Duration) error {
	switch calcOutput {
	case "text", "":
		return calc.WriteReport(w, input, elapsed)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(calc.Results())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(calc.Results()); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("invalid output format %q (expected text, json or yaml)", calcOutput)
}
