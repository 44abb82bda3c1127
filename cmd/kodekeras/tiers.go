package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List difficulty tiers and their round counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTiers(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}

func printTiers(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIFFICULTY\tROUNDS\tDESCRIPTION")
	for _, t := range scene.Tiers() {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Difficulty, t.MaxSteps, t.Description)
	}
	return tw.Flush()
}
