package main

import (
	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
)

var diffCmd = &cobra.Command{
	Use:   "diff [test] <id>",
	Short: "Show how one entry changed",
	Long: `Print a line diff of baseline against current output for every stage
of one entry that changed.

Examples:
  regtest diff Hx3f
  regtest diff nob Hx3f -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		test, id := "", args[0]
		if len(args) == 2 {
			test, id = args[0], args[1]
		}
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		e, diffs, err := a.svc.Entry(cmd.Context(), test, id, corpusFilters())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if f := GetOutput(); f != formatter.FormatTable {
			return formatter.Encode(w, f, map[string]any{"entry": e, "diffs": diffs})
		}
		return formatter.WriteDiff(w, e, diffs)
	},
}

func init() {
	diffCmd.GroupID = "core"
	rootCmd.AddCommand(diffCmd)
}
