// Package pipeline compiles an ordered list of stages into a plan of external
// processes and runs that plan as a supervised process chain.
//
// Stages are never spliced into one shell line. Every process of a plan is
// started on its own, connected to its neighbours by OS pipes, and gets its
// own timeout, stderr sink and optional output taps.
package pipeline

import (
	"fmt"
	"strings"
)

// Type tags how a stage's output is interpreted.
type Type string

const (
	// TypeAuto is a plain text-to-text stage.
	TypeAuto Type = "auto"

	// TypeCG is a constraint-grammar stage. It always runs with a trace flag
	// and its output is untraced again so the main stream stays a clean
	// rewrite while the trace stream keeps the rule firings.
	TypeCG Type = "cg"
)

// TraceSuffix marks the shadow stage holding a stage's trace output.
const TraceSuffix = "-trace"

// Reserved stage names.
var reservedNames = map[string]bool{"input": true, "gold": true}

// Stage is one step of a pipeline.
type Stage struct {
	Name string `yaml:"name" json:"name"`
	Cmd  string `yaml:"cmd" json:"cmd"`
	Type Type   `yaml:"type,omitempty" json:"type,omitempty"`
	// Trace holds extra arguments that make the stage emit trace output.
	Trace string `yaml:"trace,omitempty" json:"trace,omitempty"`
}

// Traced reports whether the stage has a trace shadow stage.
func (s Stage) Traced() bool {
	return s.Type == TypeCG || s.Trace != ""
}

// TraceName is the name of the trace shadow stage of name.
func TraceName(name string) string {
	return name + TraceSuffix
}

// IsTraceName reports whether name is a trace shadow stage.
func IsTraceName(name string) bool {
	return strings.HasSuffix(name, TraceSuffix)
}

// Normalize fills in defaults: an empty type becomes auto.
func Normalize(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		if s.Type == "" {
			s.Type = TypeAuto
		}
		s.Type = Type(strings.ToLower(string(s.Type)))
		out[i] = s
	}
	return out
}

// Validate rejects empty pipelines, duplicate or reserved names and stages
// without a command.
func Validate(stages []Stage) error {
	if len(stages) == 0 {
		return ErrNoStages
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: empty name", ErrInvalidStage)
		case reservedNames[s.Name] || IsTraceName(s.Name):
			return fmt.Errorf("%w: %q: name may not be \"input\" or \"gold\" or end in %q", ErrInvalidStage, s.Name, TraceSuffix)
		case seen[s.Name]:
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidStage, s.Name)
		case strings.TrimSpace(s.Cmd) == "":
			return fmt.Errorf("%w: %q has no command", ErrInvalidStage, s.Name)
		case s.Type != "" && s.Type != TypeAuto && s.Type != TypeCG:
			return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidStage, s.Name, s.Type)
		}
		seen[s.Name] = true
	}
	return nil
}

// AllNames lists every stage name in pipeline order, each traced stage
// followed by its trace shadow.
func AllNames(stages []Stage) []string {
	var out []string
	for _, s := range stages {
		out = append(out, s.Name)
		if s.Traced() {
			out = append(out, TraceName(s.Name))
		}
	}
	return out
}
