package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run [test]",
	Short: "Execute a test over its corpora",
	Long: `Ingest and deduplicate the selected corpora, run every unique segment
through the test's pipeline on parallel workers, and reassemble per-corpus
output for every stage.

Examples:
  regtest run
  regtest run nob -c 'gt-*' -P 8
  regtest run -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.GroupID = "core"
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print progress")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	var opts []review.ServiceOption
	if !runQuiet && GetOutput() == formatter.FormatTable {
		opts = append(opts, review.WithProgress(progressPrinter()))
	}
	a, err := loadApp(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	report, err := a.svc.Run(cmd.Context(), review.RunRequest{Test: testArg(args), Corpora: corpusFilters()})
	if err != nil {
		return err
	}
	if !runQuiet && GetOutput() == formatter.FormatTable {
		fmt.Fprintln(os.Stderr) //nolint:errcheck // ends the progress line
	}

	w := cmd.OutOrStdout()
	if f := GetOutput(); f == formatter.FormatTable {
		err = formatter.WriteReport(w, report)
	} else {
		err = formatter.Encode(w, f, report)
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 || report.Shortfall() > 0 {
		return fmt.Errorf("%w: %d failed workers, %d of %d segments missing",
			errIncomplete, len(report.Failures), report.Shortfall(), report.Unique)
	}
	return nil
}

// progressPrinter rewrites one stderr line per update.
func progressPrinter() runner.ProgressFunc {
	var mu sync.Mutex
	last := -1
	return func(p runner.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if p.Seen == last {
			return
		}
		last = p.Seen
		//nolint:errcheck // progress is best effort
		fmt.Fprintf(os.Stderr, "\r%d/%d segments (%.1f%%)", p.Seen, p.Unique, p.Percent())
	}
}
