package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/server"
)

var (
	servePort int
	serveRun  bool
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve [test]",
	Short: "Serve the review protocol over HTTP",
	Long: `Serve the review protocol as JSON on /callback for a browser front end.
Every action is a GET or POST with the parameters a (action), t (test),
c (corpora), and the action's own parameters; n carries the server nonce.

Examples:
  regtest serve
  regtest serve nob --run --port 3100`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		test, err := a.svc.TestName(testArg(args))
		if err != nil {
			return err
		}
		if serveRun {
			report, err := a.svc.Run(ctx, review.RunRequest{Test: test, Corpora: corpusFilters()})
			if err != nil {
				return err
			}
			a.log.Info("initial run finished",
				zap.String("test", test),
				zap.Int("unique", report.Unique),
				zap.Int("missing", report.Shortfall()))
		}

		port := servePort
		if port == 0 {
			port = a.svc.Settings().Port
		}
		addr := net.JoinHostPort(serveHost, strconv.Itoa(port))
		srv := server.New(a.svc, server.WithLogger(a.log))
		//nolint:errcheck // CLI output
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s%s (nonce %s)\n", test, addr, server.CallbackPath, srv.Nonce())
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.GroupID = "review"
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default from settings)")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Listen host")
	serveCmd.Flags().BoolVarP(&serveRun, "run", "r", false, "Run the test before serving")
	rootCmd.AddCommand(serveCmd)
}
