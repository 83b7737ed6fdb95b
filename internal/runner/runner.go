// Package runner executes a test: it ingests the corpora, partitions the
// unique segments over worker process chains, supervises them under a run
// lock and reassembles their output per corpus and stage.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/corpus"
	"github.com/boshu2/regtest/internal/pipeline"
)

// doneFile marks a scratch directory whose workers all exited.
const doneFile = "done"

// Job describes one execution of a test.
type Job struct {
	Test    string
	Stages  []pipeline.Stage
	Corpora []corpus.Source
	// Env holds extra KEY=VALUE entries for every stage process.
	Env []string
	// Procs is the number of worker chains.
	Procs int
	// Timeout is the ceiling for every stage process and for the whole run.
	Timeout time.Duration
	Nice    int
	Tools   pipeline.Tools
}

// Report summarizes a finished run.
type Report struct {
	RunID   string `json:"run_id"`
	Unique  int    `json:"unique"`
	Seen    int    `json:"seen"`
	Workers int    `json:"workers"`
	// ExampleMissing is one id that never reached the final output.
	ExampleMissing string `json:"example_missing,omitempty"`
	// Failures lists worker chains that exited with an error.
	Failures []string      `json:"failures,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Shortfall is the number of unique segments missing from the final output.
func (r *Report) Shortfall() int {
	return r.Unique - r.Seen
}

// Runner executes jobs against an artifact store.
type Runner struct {
	store    *artifact.Store
	log      *zap.Logger
	progress ProgressFunc
	probe    ProbeFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithProbe replaces the process table lookup used to judge existing locks.
func WithProbe(fn ProbeFunc) Option {
	return func(r *Runner) {
		r.probe = fn
	}
}

// New creates a runner writing into store.
func New(store *artifact.Store, opts ...Option) *Runner {
	r := &Runner{store: store, log: zap.NewNop(), probe: PSProbe}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LockPath is the run lock of test.
func (r *Runner) LockPath(test string) string {
	return filepath.Join(r.store.RunDir(test), LockFile)
}

// Run executes job. It blocks until every worker chain has exited or the
// job timeout fired. Failed or timed out chains and a shortfall of output are
// reported, not returned; errors mean the run could not take place.
func (r *Runner) Run(ctx context.Context, job Job) (*Report, error) {
	if len(job.Corpora) == 0 {
		return nil, ErrNoCorpora
	}
	start := time.Now()
	log := r.log.With(zap.String("test", job.Test))

	plan, err := pipeline.Compile(job.Stages,
		pipeline.WithEnv(job.Env...),
		pipeline.WithStageTimeout(job.Timeout),
		pipeline.WithNice(job.Nice),
		pipeline.WithTools(job.Tools))
	if err != nil {
		return nil, err
	}

	lock, err := AcquireLock(r.LockPath(job.Test), job.Test, r.probe, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("release lock", zap.Error(err))
		}
	}()
	log = log.With(zap.String("run_id", lock.RunID()))

	set, err := corpus.NewIngestor(
		corpus.WithConcurrency(job.Procs),
		corpus.WithLogger(log),
	).Ingest(ctx, job.Corpora)
	if err != nil {
		return nil, err
	}

	scratch := r.store.ScratchDir(job.Test)
	if err := r.store.ResetDir(scratch); err != nil {
		return nil, err
	}
	err = set.WriteIndexes(func(name string, render func(io.Writer) error) error {
		return r.store.AtomicWrite(r.store.IndexPath(job.Test, name), render)
	})
	if err != nil {
		return nil, fmt.Errorf("write corpus indexes: %w", err)
	}

	parts := corpus.Partition(set, job.Procs)
	for i, part := range parts {
		part := part
		if err := r.store.AtomicWrite(inputFile(scratch, i), func(w io.Writer) error {
			return corpus.WritePartition(w, part)
		}); err != nil {
			return nil, fmt.Errorf("write worker input: %w", err)
		}
	}

	report := &Report{RunID: lock.RunID(), Unique: len(set.Unique), Workers: len(parts)}
	log.Info("running",
		zap.Int("unique", report.Unique),
		zap.Int("corpora", len(set.Corpora)),
		zap.Int("workers", report.Workers),
		zap.Strings("stages", plan.Names()))

	outs := make([]string, len(parts))
	for i := range parts {
		outs[i] = outFile(scratch, i)
	}
	report.Failures = r.execute(ctx, plan, scratch, outs, len(set.Unique), job.Timeout, log)

	seen, err := scanIDs(outs)
	if err != nil {
		return nil, err
	}
	report.Seen = countKnown(seen, set)
	if report.Shortfall() > 0 {
		report.ExampleMissing = firstMissing(set, seen)
		log.Warn("segments missing from final output",
			zap.Int("missing", report.Shortfall()),
			zap.Int("unique", report.Unique),
			zap.String("example", report.ExampleMissing))
	}

	stages := append([]string{artifact.InputStage}, plan.Names()...)
	if err := Reassemble(ctx, r.store, job.Test, set, stages, len(parts), job.Procs); err != nil {
		return nil, fmt.Errorf("reassemble: %w", err)
	}

	report.Elapsed = time.Since(start)
	log.Info("run finished",
		zap.Int("seen", report.Seen),
		zap.Int("unique", report.Unique),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// execute runs one chain per worker input under the job timeout and returns
// the failures.
func (r *Runner) execute(ctx context.Context, plan *pipeline.Plan, scratch string, outs []string, unique int, timeout time.Duration, log *zap.Logger) []string {
	if timeout <= 0 {
		timeout = pipeline.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watcher := newProgressWatcher(scratch, outs, unique, r.progress, log)
	watcher.Start(ctx)

	failures := make([]string, len(outs))
	var g errgroup.Group
	for i := range outs {
		i := i
		g.Go(func() error {
			if err := r.runWorker(ctx, plan, scratch, i, log.With(zap.Int("worker", i))); err != nil {
				failures[i] = fmt.Sprintf("worker %d: %v", i, err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // failures are collected per worker

	watcher.Stop()
	if err := os.WriteFile(filepath.Join(scratch, doneFile), nil, 0644); err != nil {
		log.Warn("write completion marker", zap.Error(err))
	}

	var out []string
	for _, f := range failures {
		if f != "" {
			log.Warn("worker failed", zap.String("error", f))
			out = append(out, f)
		}
	}
	return out
}

func (r *Runner) runWorker(ctx context.Context, plan *pipeline.Plan, scratch string, i int, log *zap.Logger) error {
	in, err := os.Open(inputFile(scratch, i))
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.Create(outFile(scratch, i))
	if err != nil {
		return err
	}
	sinks := &fileSinks{dir: scratch, worker: i}

	runErr := plan.Run(ctx, in, out, sinks, log)
	closeErr := errors.Join(sinks.Close(), out.Close())
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func countKnown(seen map[string]struct{}, set *corpus.Set) int {
	n := 0
	for id := range seen {
		if _, ok := set.Unique[id]; ok {
			n++
		}
	}
	return n
}

func firstMissing(set *corpus.Set, seen map[string]struct{}) string {
	hashes := set.SortedHashes()
	for _, h := range hashes {
		if _, ok := seen[h]; !ok {
			return h
		}
	}
	return ""
}
