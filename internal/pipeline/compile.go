package pipeline

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the wall-clock ceiling for a stage and for a whole run.
	DefaultTimeout = 30 * time.Minute

	traceFlag      = "--trace"
	autobinWrapper = "cg3-autobin.pl"
	cgBinary       = "vislcg3"
)

// Tap selects an extra sink a node's stdout is teed into.
type Tap int

const (
	// TapNone tees nowhere.
	TapNone Tap = iota
	// TapTrace tees into the stage's trace sink.
	TapTrace
)

// Node is one process of a compiled stage.
type Node struct {
	// Command is run by the shell on its own; it is never concatenated with
	// the commands of other nodes.
	Command string
	Tap     Tap
}

// CompiledStage is the process sequence implementing one stage. The stdout
// of the last node is the stage's output.
type CompiledStage struct {
	Stage Stage
	Nodes []Node
}

// Plan is a compiled pipeline.
type Plan struct {
	Stages []CompiledStage

	// Env holds extra KEY=VALUE entries for every process.
	Env []string

	// StageTimeout bounds every single process.
	StageTimeout time.Duration

	// Nice is the scheduling priority increment applied to every process.
	Nice int

	// Shell runs each node's command.
	Shell string
}

// Tools names the helper executables cg stages are post-processed with.
type Tools struct {
	Sort    string `yaml:"sort" json:"sort"`
	Untrace string `yaml:"untrace" json:"untrace"`
}

// DefaultTools are the stock vislcg3 helpers.
func DefaultTools() Tools {
	return Tools{Sort: "cg-sort", Untrace: "cg-untrace"}
}

// Option configures compilation.
type Option func(*Plan, *Tools)

// WithEnv adds KEY=VALUE entries to every process environment.
func WithEnv(env ...string) Option {
	return func(p *Plan, _ *Tools) {
		p.Env = append(p.Env, env...)
	}
}

// WithStageTimeout sets the per-process ceiling.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Plan, _ *Tools) {
		if d > 0 {
			p.StageTimeout = d
		}
	}
}

// WithNice sets the priority increment; 0 keeps the caller's priority.
func WithNice(n int) Option {
	return func(p *Plan, _ *Tools) {
		p.Nice = n
	}
}

// WithShell overrides the shell used to interpret node commands.
func WithShell(shell string) Option {
	return func(p *Plan, _ *Tools) {
		p.Shell = shell
	}
}

// WithTools overrides the cg helper executables.
func WithTools(t Tools) Option {
	return func(_ *Plan, tools *Tools) {
		if t.Sort != "" {
			tools.Sort = t.Sort
		}
		if t.Untrace != "" {
			tools.Untrace = t.Untrace
		}
	}
}

// Compile turns stages into a plan.
//
// A stage with explicit trace arguments runs with them appended and its own
// output doubles as the trace. A cg stage runs with --trace, is sorted, teed
// into the trace sink, untraced and sorted again. A trace flag already in the
// command is never added twice.
func Compile(stages []Stage, opts ...Option) (*Plan, error) {
	stages = Normalize(stages)
	if err := Validate(stages); err != nil {
		return nil, err
	}

	plan := &Plan{StageTimeout: DefaultTimeout, Nice: 20, Shell: "/bin/sh"}
	tools := DefaultTools()
	for _, opt := range opts {
		opt(plan, &tools)
	}

	for _, s := range stages {
		cmd := rewriteAutobin(strings.TrimSpace(s.Cmd))
		cs := CompiledStage{Stage: s}
		switch {
		case s.Trace != "":
			cs.Nodes = []Node{{Command: appendArgs(cmd, s.Trace), Tap: TapTrace}}
		case s.Type == TypeCG:
			cs.Nodes = []Node{
				{Command: appendArgs(cmd, traceFlag)},
				{Command: tools.Sort, Tap: TapTrace},
				{Command: tools.Untrace},
				{Command: tools.Sort},
			}
		default:
			cs.Nodes = []Node{{Command: cmd}}
		}
		plan.Stages = append(plan.Stages, cs)
	}
	return plan, nil
}

// Names lists the plan's stage names with trace shadows, in order.
func (p *Plan) Names() []string {
	stages := make([]Stage, len(p.Stages))
	for i, cs := range p.Stages {
		stages[i] = cs.Stage
	}
	return AllNames(stages)
}

// appendArgs appends extra to cmd, dropping any long flag cmd already has.
func appendArgs(cmd, extra string) string {
	have := make(map[string]bool)
	for _, f := range strings.Fields(cmd) {
		if strings.HasPrefix(f, "--") {
			have[f] = true
		}
	}
	parts := []string{cmd}
	for _, f := range strings.Fields(extra) {
		if strings.HasPrefix(f, "--") {
			if have[f] {
				continue
			}
			have[f] = true
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// rewriteAutobin swaps the cg3-autobin.pl wrapper for vislcg3, which is the
// only one of the two that can emit traces.
func rewriteAutobin(cmd string) string {
	head, rest, _ := strings.Cut(cmd, " ")
	if filepath.Base(head) != autobinWrapper {
		return cmd
	}
	if rest == "" {
		return cgBinary
	}
	return cgBinary + " " + rest
}
