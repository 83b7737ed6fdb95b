package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [test]",
	Short: "Remove stale baselines and stage the rest",
	Long: `Delete baseline and gold files of stages and corpora the test no longer
has, untrack them, and stage the remaining baselines and tracked corpora
when the test uses git.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.svc.Cleanup(cmd.Context(), testArg(args))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if f := GetOutput(); f != formatter.FormatTable {
			return formatter.Encode(w, f, res)
		}
		for _, p := range res.Removed {
			fmt.Fprintf(w, "removed %s\n", p) //nolint:errcheck // CLI output
		}
		fmt.Fprintf(w, "%d removed, %d kept\n", len(res.Removed), len(res.Staged)) //nolint:errcheck // CLI output
		return nil
	},
}

func init() {
	cleanupCmd.GroupID = "review"
	rootCmd.AddCommand(cleanupCmd)
}
