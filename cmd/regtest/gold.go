package main

import (
	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/review"
)

var (
	goldIDs        []string
	goldCandidates []string
)

var goldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Curate the gold standard",
	Long: `Gold candidates are the acceptable final outputs of an entry. An entry
whose final output matches one of them is golden regardless of how it
differs from the baseline.`,
}

func newGoldOpCmd(op review.GoldOp, short, example string) *cobra.Command {
	return &cobra.Command{
		Use:     string(op) + " [test]",
		Short:   short,
		Example: example,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := splitIDs(goldIDs)
			if len(ids) == 0 {
				return usageError(errNoIDs)
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			done, err := a.svc.Gold(cmd.Context(), review.GoldRequest{
				Test:       testArg(args),
				Op:         op,
				IDs:        ids,
				Candidates: goldCandidates,
				Corpora:    corpusFilters(),
			})
			if err != nil {
				return err
			}
			return writeIDs(cmd, "updated", done)
		},
	}
}

func init() {
	goldCmd.GroupID = "review"
	goldCmd.PersistentFlags().StringSliceVar(&goldIDs, "ids", nil, "Entry ids, comma or semicolon separated")

	set := newGoldOpCmd(review.GoldSet, "Replace the candidates with an explicit list",
		"  regtest gold set --ids Hx3f --candidate 'one' --candidate 'two'")
	// candidates may contain commas, so no slice splitting
	set.Flags().StringArrayVar(&goldCandidates, "candidate", nil, "Candidate output (repeatable; none clears the set)")

	goldCmd.AddCommand(
		newGoldOpCmd(review.GoldAdd, "Add the current final output to the candidates",
			"  regtest gold add --ids Hx3f,q9Zk"),
		newGoldOpCmd(review.GoldReplace, "Make the current final output the only candidate",
			"  regtest gold replace --ids Hx3f"),
		set,
	)
	rootCmd.AddCommand(goldCmd)
}
