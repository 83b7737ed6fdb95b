package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
	"github.com/boshu2/regtest/internal/review"
)

var (
	errNoIDs  = errors.New("no entry ids given (--ids)")
	errPage   = errors.New("--page starts at 1")
	errCorpus = errors.New("exactly one corpus is required (--corpus)")
)

var (
	acceptIDs  []string
	acceptStep string
	ndCorpus   string
)

var acceptCmd = &cobra.Command{
	Use:   "accept [test]",
	Short: "Accept current output as baseline",
	Long: `Copy the current output of the given entries into their baseline, for
every stage up to and including --step (default: the final stage). Entries
that are added, deleted or missing are skipped; use accept-nd for those.

Examples:
  regtest accept --ids Hx3f,q9Zk
  regtest accept nob --ids Hx3f --step morph`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := splitIDs(acceptIDs)
		if len(ids) == 0 {
			return usageError(errNoIDs)
		}
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		done, err := a.svc.Accept(cmd.Context(), review.AcceptRequest{
			Test:    testArg(args),
			IDs:     ids,
			Stage:   acceptStep,
			Corpora: corpusFilters(),
		})
		if err != nil {
			return err
		}
		return writeIDs(cmd, "accepted", done)
	},
}

var acceptNDCmd = &cobra.Command{
	Use:   "accept-nd [test]",
	Short: "Adopt added and acknowledge deleted entries of a corpus",
	Long: `Make every added entry of a corpus part of its baseline and drop the
baseline of every entry that left the corpus.

Examples:
  regtest accept-nd --corpus gt-bible`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ndCorpus
		if c == "" && len(corpora) == 1 {
			c = corpora[0]
		}
		if c == "" {
			return usageError(errCorpus)
		}
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		done, err := a.svc.AcceptNoDiff(cmd.Context(), testArg(args), c)
		if err != nil {
			return err
		}
		return writeIDs(cmd, "adopted", done)
	},
}

func init() {
	acceptCmd.GroupID = "review"
	acceptCmd.Flags().StringSliceVar(&acceptIDs, "ids", nil, "Entry ids, comma or semicolon separated")
	acceptCmd.Flags().StringVarP(&acceptStep, "step", "s", "", "Last stage to accept (default: final stage)")
	rootCmd.AddCommand(acceptCmd)

	acceptNDCmd.GroupID = "review"
	acceptNDCmd.Flags().StringVar(&ndCorpus, "corpus", "", "Corpus to reconcile (default: the single -c value)")
	rootCmd.AddCommand(acceptNDCmd)
}

// writeIDs reports the ids a mutation touched.
func writeIDs(cmd *cobra.Command, verb string, ids []string) error {
	w := cmd.OutOrStdout()
	if f := GetOutput(); f != formatter.FormatTable {
		if ids == nil {
			ids = []string{}
		}
		return formatter.Encode(w, f, map[string][]string{verb: ids})
	}
	return formatter.WriteIDs(w, verb, ids)
}
