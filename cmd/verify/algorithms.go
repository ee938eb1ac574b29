package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
)

var algorithmsCmd = &cobra.Command{
	Use:     "algorithms",
	Aliases: []string{"algs"},
	Short:   "List supported algorithms",
	Long: `List every algorithm with its identifier, family and digest width.

Names and identifiers are accepted case-insensitively by -a.`,
	Args: cobra.NoArgs,
	RunE: runAlgorithms,
}

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}

func runAlgorithms(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFAMILY\tBITS\tAVAILABLE")
	for _, id := range algorithm.All() {
		info, err := algorithm.Lookup(id)
		if err != nil {
			return err
		}
		avail := "yes"
		if !algorithm.Default.Supports(id) {
			avail = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", info.Token, info.Name, info.ShortName, info.Size*8, avail)
	}
	return tw.Flush()
}
