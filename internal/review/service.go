package review

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/corpus"
	"github.com/boshu2/regtest/internal/pipeline"
	"github.com/boshu2/regtest/internal/runner"
	"github.com/boshu2/regtest/internal/vcs"
)

// Service exposes the review protocol: load, run, accept-no-diff, accept,
// gold and inspect. It is safe for concurrent use; calls for the same test
// are serialized.
type Service struct {
	cfg      *config.Config
	settings config.Settings
	store    *artifact.Store
	registry *Registry
	tracker  vcs.Tracker
	progress runner.ProgressFunc
	log      *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracker sets the version control tracker used by cleanup.
func WithTracker(t vcs.Tracker) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithSettings overrides the runtime settings of the configuration.
func WithSettings(st config.Settings) ServiceOption {
	return func(s *Service) {
		s.settings = st
	}
}

// WithProgress receives run progress.
func WithProgress(fn runner.ProgressFunc) ServiceOption {
	return func(s *Service) {
		s.progress = fn
	}
}

// NewService creates a service over the project described by cfg.
func NewService(cfg *config.Config, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:      cfg,
		settings: cfg.Settings,
		store:    artifact.NewStore(cfg.Root),
		registry: NewRegistry(),
		tracker:  vcs.Nop{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the artifact store of the project.
func (s *Service) Store() *artifact.Store {
	return s.store
}

// Registry returns the session registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Settings returns the effective runtime settings.
func (s *Service) Settings() config.Settings {
	return s.settings
}

// TestName resolves an empty name to the default test.
func (s *Service) TestName(name string) (string, error) {
	t, err := s.cfg.Test(name)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// TestSummary names a declared test.
type TestSummary struct {
	Name string `json:"name"`
	Desc string `json:"desc,omitempty"`
}

// Tests lists the declared tests in configuration order.
func (s *Service) Tests() []TestSummary {
	names := s.cfg.TestNames()
	out := make([]TestSummary, 0, len(names))
	for _, n := range names {
		if t, err := s.cfg.Test(n); err == nil {
			out = append(out, TestSummary{Name: n, Desc: t.Desc})
		}
	}
	return out
}

// Info resolves the stages and corpora of a test.
func (s *Service) Info(ctx context.Context, test string) (*TestInfo, error) {
	name, err := s.TestName(test)
	if err != nil {
		return nil, err
	}
	sl, unlock := s.registry.acquire(name)
	defer unlock()
	return s.info(ctx, sl, name)
}

func (s *Service) info(ctx context.Context, sl *slot, name string) (*TestInfo, error) {
	if sl.info != nil {
		return sl.info, nil
	}
	t, err := s.cfg.Test(name)
	if err != nil {
		return nil, err
	}
	stages, err := s.cfg.Stages(ctx, t)
	if err != nil {
		return nil, err
	}
	corpora, err := s.cfg.Corpora(t, nil)
	if err != nil {
		return nil, err
	}
	info := &TestInfo{
		Name:    t.Name,
		Stages:  stages,
		Corpora: corpora,
		Env:     t.Env,
		Gold:    t.UsesGold(),
		Git:     t.UsesGit(),
	}
	if t.Grep != "" {
		re, err := regexp.Compile(t.Grep)
		if err != nil {
			return nil, fmt.Errorf("%w: grep of test %q: %v", config.ErrInvalidConfig, t.Name, err)
		}
		info.Grep = re
	}
	sl.info = info
	return info, nil
}

// begin locks test and returns its resolved info and session, loading the
// selected corpora.
func (s *Service) begin(ctx context.Context, test string, filters []string) (*Session, []config.Corpus, func(), error) {
	name, err := s.TestName(test)
	if err != nil {
		return nil, nil, nil, err
	}
	sl, unlock := s.registry.acquire(name)
	fail := func(err error) (*Session, []config.Corpus, func(), error) {
		unlock()
		return nil, nil, nil, err
	}

	info, err := s.info(ctx, sl, name)
	if err != nil {
		return fail(err)
	}
	selected, err := config.FilterCorpora(info.Corpora, filters)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrInvalidParam, err))
	}
	if sl.session == nil {
		sl.session = newSession(info, s.store)
	}
	bootstrapped, err := sl.session.ensure(selected)
	if err != nil {
		return fail(err)
	}
	if bootstrapped {
		s.log.Info("new baselines copied from current output", zap.String("test", name))
		if _, err := Cleanup(ctx, s.store, info, s.tracker, s.log); err != nil {
			s.log.Warn("cleanup after bootstrap", zap.Error(err))
		}
	}
	return sl.session, selected, unlock, nil
}

// LoadRequest asks for one page of classified entries.
type LoadRequest struct {
	Test     string
	Corpora  []string
	Gold     string
	Page     int
	PageSize int
}

// Load classifies the selected corpora and returns one page.
func (s *Service) Load(ctx context.Context, req LoadRequest) (*Page, error) {
	gold, err := ParseGoldFilter(req.Gold)
	if err != nil {
		return nil, err
	}
	sess, selected, unlock, err := s.begin(ctx, req.Test, req.Corpora)
	if err != nil {
		return nil, err
	}
	defer unlock()

	size := req.PageSize
	if size <= 0 {
		size = s.settings.PageSize
	}
	return sess.query(Query{
		Corpora:  corpusNames(selected),
		Gold:     gold,
		Page:     req.Page,
		PageSize: size,
	}), nil
}

// Entry loads the selected corpora and returns one entry with its stage
// diffs.
func (s *Service) Entry(ctx context.Context, test, id string, corpora []string) (*Entry, []StageDiff, error) {
	sess, _, unlock, err := s.begin(ctx, test, corpora)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	e, ok := sess.Entry(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no entry %q", ErrInvalidParam, id)
	}
	return e, DiffEntry(e, sess.info.StageNames()), nil
}

// RunRequest asks for a test execution.
type RunRequest struct {
	Test    string
	Corpora []string
}

// Run executes a test and drops its cached review state on success.
func (s *Service) Run(ctx context.Context, req RunRequest) (*runner.Report, error) {
	name, err := s.TestName(req.Test)
	if err != nil {
		return nil, err
	}
	sl, unlock := s.registry.acquire(name)
	defer unlock()

	sl.info = nil
	info, err := s.info(ctx, sl, name)
	if err != nil {
		return nil, err
	}
	selected, err := config.FilterCorpora(info.Corpora, req.Corpora)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	sources := make([]corpus.Source, len(selected))
	for i, c := range selected {
		sources[i] = corpus.Source{Name: c.Name, Path: c.Path}
	}

	r := runner.New(s.store,
		runner.WithLogger(s.log),
		runner.WithProgress(s.progress))
	report, err := r.Run(ctx, runner.Job{
		Test:    name,
		Stages:  info.Stages,
		Corpora: sources,
		Env:     info.Env,
		Procs:   s.settings.Procs,
		Timeout: s.settings.TimeoutDuration(),
		Nice:    s.settings.Nice,
		Tools:   s.settings.Tools,
	})
	if err != nil {
		return nil, err
	}
	sl.session = nil
	return report, nil
}

// AcceptNoDiff adopts the added entries of a corpus as baseline and
// acknowledges its deleted ones.
func (s *Service) AcceptNoDiff(ctx context.Context, test, corpusName string) ([]string, error) {
	if corpusName == "" {
		return nil, fmt.Errorf("%w: corpus is required", ErrInvalidParam)
	}
	sess, selected, unlock, err := s.begin(ctx, test, []string{corpusName})
	if err != nil {
		return nil, err
	}
	defer unlock()

	var target *config.Corpus
	for i := range selected {
		if selected[i].Name == corpusName {
			target = &selected[i]
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: unknown corpus %q", ErrInvalidParam, corpusName)
	}

	ids := sess.acceptNoDiff(corpusName)
	if err := sess.persistBaseline(*target); err != nil {
		return ids, err
	}
	return ids, s.cleanup(ctx, sess.info)
}

// AcceptRequest accepts entries up to a stage.
type AcceptRequest struct {
	Test string
	IDs  []string
	// Stage is the last stage accepted; empty means the final stage.
	Stage   string
	Corpora []string
}

// Accept copies current output into the baseline for the given entries.
func (s *Service) Accept(ctx context.Context, req AcceptRequest) ([]string, error) {
	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: no ids given", ErrInvalidParam)
	}
	sess, _, unlock, err := s.begin(ctx, req.Test, req.Corpora)
	if err != nil {
		return nil, err
	}
	defer unlock()

	upto, err := sess.info.StageIndex(req.Stage)
	if err != nil {
		return nil, err
	}
	ids, touched := sess.accept(req.IDs, upto)
	return ids, s.persist(ctx, sess, touched, sess.persistBaseline)
}

// GoldRequest mutates gold sets.
type GoldRequest struct {
	Test string
	Op   GoldOp
	IDs  []string
	// Candidates is the new gold set for GoldSet.
	Candidates []string
	Corpora    []string
}

// Gold applies a gold operation to the given entries.
func (s *Service) Gold(ctx context.Context, req GoldRequest) ([]string, error) {
	op, err := ParseGoldOp(string(req.Op))
	if err != nil {
		return nil, err
	}
	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: no ids given", ErrInvalidParam)
	}
	sess, _, unlock, err := s.begin(ctx, req.Test, req.Corpora)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids, touched := sess.gold(op, req.IDs, req.Candidates)
	return ids, s.persist(ctx, sess, touched, sess.persistGold)
}

// persist rewrites every touched corpus independently, then cleans up.
func (s *Service) persist(ctx context.Context, sess *Session, touched map[string]bool, write func(config.Corpus) error) error {
	if len(touched) == 0 {
		return nil
	}
	var errs []error
	for _, c := range sess.info.Corpora {
		if !touched[c.Name] {
			continue
		}
		if err := write(c); err != nil {
			s.log.Error("persist corpus", zap.String("corpus", c.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := s.cleanup(ctx, sess.info); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Cleanup prunes and stages the artifacts of a test.
func (s *Service) Cleanup(ctx context.Context, test string) (*CleanupResult, error) {
	name, err := s.TestName(test)
	if err != nil {
		return nil, err
	}
	sl, unlock := s.registry.acquire(name)
	defer unlock()
	info, err := s.info(ctx, sl, name)
	if err != nil {
		return nil, err
	}
	return Cleanup(ctx, s.store, info, s.tracker, s.log)
}

func (s *Service) cleanup(ctx context.Context, info *TestInfo) error {
	_, err := Cleanup(ctx, s.store, info, s.tracker, s.log)
	return err
}

// InspectResult is the output of an ad-hoc run.
type InspectResult struct {
	Stages  []string          `json:"stages"`
	Outputs map[string]string `json:"outputs"`
	Stderr  map[string]string `json:"stderr,omitempty"`
}

// Inspect runs text through the pipeline of a test in a single chain,
// bypassing corpora and workers, and returns every stage's output and trace.
func (s *Service) Inspect(ctx context.Context, test, text string) (*InspectResult, error) {
	info, err := s.Info(ctx, test)
	if err != nil {
		return nil, err
	}
	plan, err := pipeline.Compile(info.Stages,
		pipeline.WithEnv(info.Env...),
		pipeline.WithStageTimeout(s.settings.TimeoutDuration()),
		pipeline.WithNice(s.settings.Nice),
		pipeline.WithTools(s.settings.Tools))
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.TimeoutDuration())
	defer cancel()
	sinks := pipeline.NewBufferSinks()
	runErr := plan.Run(ctx, strings.NewReader(text), nil, sinks, s.log.With(zap.String("test", info.Name)))

	res := &InspectResult{
		Stages:  plan.Names(),
		Outputs: sinks.Results(),
		Stderr:  make(map[string]string),
	}
	for _, name := range info.StageNames() {
		if e := sinks.StderrOf(name); e != "" {
			res.Stderr[name] = e
		}
	}
	return res, runErr
}

func corpusNames(cs []config.Corpus) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	sort.Strings(out)
	return out
}
