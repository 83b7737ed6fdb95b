package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/regtest/internal/formatter"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [test] <text|->",
	Short: "Run ad-hoc text through a test's pipeline",
	Long: `Run one piece of text through the pipeline of a test in a single chain,
without corpora or workers, and print the output of every stage and trace.
Pass - to read the text from stdin.

Examples:
  regtest inspect 'Dát lea buorre.'
  echo 'Dát lea buorre.' | regtest inspect nob -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		test, src := "", args[0]
		if len(args) == 2 {
			test, src = args[0], args[1]
		}
		text, err := inspectInput(src, cmd.InOrStdin())
		if err != nil {
			return err
		}
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.svc.Inspect(cmd.Context(), test, text)
		if res == nil {
			return err
		}
		w := cmd.OutOrStdout()
		var werr error
		if f := GetOutput(); f != formatter.FormatTable {
			werr = formatter.Encode(w, f, res)
		} else {
			werr = formatter.WriteInspect(w, res)
		}
		if err != nil {
			return err
		}
		return werr
	},
}

func init() {
	inspectCmd.GroupID = "core"
	rootCmd.AddCommand(inspectCmd)
}

// inspectInput returns src, or all of r when src is "-".
func inspectInput(src string, r io.Reader) (string, error) {
	if src != "-" {
		return src, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", usageError(fmt.Errorf("no input on stdin"))
	}
	return string(b), nil
}
