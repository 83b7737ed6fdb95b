package main

import (
	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
	"github.com/boshu2/regtest/internal/review"
)

var (
	statusGold     string
	statusPage     int
	statusPageSize int
)

var statusCmd = &cobra.Command{
	Use:   "status [test]",
	Short: "Classify entries against the baseline",
	Long: `Load the current output of a test, compare every entry with its
baseline and gold standard, and print the bucket counts and one page of
entries. A missing baseline is bootstrapped from the current output.

Gold filters: * any, w without gold, m matching gold, u not matching gold.

Examples:
  regtest status
  regtest status nob -c gt-bible --gold u
  regtest status -o markdown > review.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.GroupID = "core"
	statusCmd.Flags().StringVarP(&statusGold, "gold", "g", "*", "Gold status filter (*, w, m, u)")
	statusCmd.Flags().IntVarP(&statusPage, "page", "p", 1, "Page to show, starting at 1")
	statusCmd.Flags().IntVarP(&statusPageSize, "page-size", "z", 0, "Entries per page (default from settings)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusPage < 1 {
		return usageError(errPage)
	}
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	page, err := a.svc.Load(cmd.Context(), review.LoadRequest{
		Test:     testArg(args),
		Corpora:  corpusFilters(),
		Gold:     statusGold,
		Page:     statusPage - 1,
		PageSize: statusPageSize,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch f := GetOutput(); f {
	case formatter.FormatTable:
		return formatter.WritePage(w, page)
	case formatter.FormatJSONL:
		return formatter.NewJSONLFormatter(page.Stages).Format(w, page)
	case formatter.FormatMarkdown:
		return formatter.NewMarkdownFormatter().Format(w, page)
	default:
		return formatter.Encode(w, f, page)
	}
}
