package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/formatter"
	"github.com/boshu2/regtest/internal/logging"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/vcs"
)

var (
	// Global flags
	folder  string
	corpora []string
	procs   int
	verbose bool
	output  string
	logJSON bool

	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "regtest",
	Short: "Regression testing for multi-stage text pipelines",
	Long: `regtest runs every segment of a set of corpora through a pipeline of
shell commands, keeps the output of every stage, and compares it with the
accepted baseline and an optional gold standard.

Core Commands:
  run          Execute a test over its corpora
  status       Classify entries against the baseline
  diff         Show how one entry changed
  inspect      Run ad-hoc text through a test's pipeline

Review Commands:
  accept       Accept current output as baseline
  accept-nd    Adopt added and acknowledge deleted entries of a corpus
  gold         Curate the gold standard
  cleanup      Remove stale baselines and stage the rest
  serve        Serve the review protocol over HTTP`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := formatter.ParseFormat(output); err != nil {
			return usageError(err)
		}
		l, err := logging.New(verbose, logJSON)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync() //nolint:errcheck // stderr sync fails on terminals
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err) //nolint:errcheck // best effort
	}
	return exitCode(err)
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "review", Title: "Review Commands:"},
	)

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&folder, "folder", "f", "", "Folder with regtest.yaml (default: ./, regtest/ or test/)")
	rootCmd.PersistentFlags().StringSliceVarP(&corpora, "corp", "c", nil, "Corpus name patterns, comma-separated or repeated (default: all)")
	rootCmd.PersistentFlags().IntVarP(&procs, "proc", "P", 0, "Number of parallel worker pipelines (default from settings)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml, jsonl, markdown)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON instead of console text")
}

// GetOutput returns the output format for use by subcommands.
func GetOutput() formatter.Format {
	f, _ := formatter.ParseFormat(output)
	return f
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...) //nolint:errcheck // diagnostics
	}
}

// app bundles what every command needs once the configuration is loaded.
type app struct {
	cfg *config.Config
	svc *review.Service
	log *zap.Logger
}

// loadApp finds and loads regtest.yaml and builds the review service. Flags
// override settings, which already carry env overrides.
func loadApp(ctx context.Context, opts ...review.ServiceOption) (*app, error) {
	log := logging.OrNop(logger)
	root, err := config.FindRoot(folder)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	st := cfg.Settings
	if procs > 0 {
		st.Procs = procs
	}
	VerbosePrintf("Using %s\n", root)

	base := []review.ServiceOption{
		review.WithLogger(log),
		review.WithSettings(st),
		review.WithTracker(vcs.Detect(ctx, root, log)),
	}
	svc := review.NewService(cfg, append(base, opts...)...)
	return &app{cfg: cfg, svc: svc, log: log}, nil
}

// testArg returns the optional test name argument.
func testArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// corpusFilters returns the -c patterns with "*" meaning all.
func corpusFilters() []string {
	return config.SplitFilters(corpora)
}
