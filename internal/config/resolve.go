package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"

	"github.com/boshu2/regtest/internal/pipeline"
)

const (
	// CorporaDir holds tracked corpus files.
	CorporaDir = "corpora"
	// LocalDir holds untracked corpus files.
	LocalDir = "local"

	discoverTimeout = time.Minute
)

// dynamicStepRe splits the output of a pipe command into stages: every stage
// command is followed by a "| REGTEST_<TYPE> <name> |" marker.
var dynamicStepRe = regexp.MustCompile(`\s*\|\s*REGTEST_(\S+)\s+(\S+)\s*\|?\s*`)

// Corpus is one resolved corpus file.
type Corpus struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// Local corpora live under local/ and are never tracked.
	Local bool `json:"local"`
}

// Stages resolves the stages of t's pipe in order.
func (c *Config) Stages(ctx context.Context, t *Test) ([]pipeline.Stage, error) {
	p, ok := c.Pipes.Get(t.Pipe)
	if !ok {
		return nil, fmt.Errorf("%w: pipe %q", ErrInvalidConfig, t.Pipe)
	}

	var stages []pipeline.Stage
	if p.Command != "" {
		discovered, err := c.discover(ctx, p.Command)
		if err != nil {
			return nil, err
		}
		stages = discovered
	}
	for _, item := range p.Items {
		if item.Inline != nil {
			stages = append(stages, *item.Inline)
			continue
		}
		st, ok := c.Steps[item.Ref]
		if !ok {
			return nil, fmt.Errorf("%w: %q in pipe %q", ErrUnknownStep, item.Ref, t.Pipe)
		}
		if st.Name == "" {
			st.Name = item.Ref
		}
		stages = append(stages, st)
	}

	stages = pipeline.Normalize(stages)
	if err := pipeline.Validate(stages); err != nil {
		return nil, fmt.Errorf("pipe %q: %w", t.Pipe, err)
	}
	return stages, nil
}

func (c *Config) discover(ctx context.Context, command string) ([]pipeline.Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = c.Root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("discover pipe with %q: %w", command, err)
	}
	return ParseDynamicPipe(string(out)), nil
}

// ParseDynamicPipe turns "cmd1 | REGTEST_AUTO tok | cmd2 | REGTEST_CG dis"
// into stages. Text after the last marker is ignored.
func ParseDynamicPipe(s string) []pipeline.Stage {
	var stages []pipeline.Stage
	prev := 0
	for _, m := range dynamicStepRe.FindAllStringSubmatchIndex(s, -1) {
		stages = append(stages, pipeline.Stage{
			Name: s[m[4]:m[5]],
			Cmd:  strings.TrimSpace(s[prev:m[0]]),
			Type: pipeline.Type(strings.ToLower(s[m[2]:m[3]])),
		})
		prev = m[1]
	}
	return stages
}

// Corpora resolves the corpus files of t. Each pattern of t's corpus groups
// is matched as <pattern>.txt below corpora/ and then local/; a local file
// replaces a tracked one of the same name. When filters are given only
// corpora whose name matches one of them are kept.
func (c *Config) Corpora(t *Test, filters []string) ([]Corpus, error) {
	matchers, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}

	found := make(map[string]Corpus)
	for _, group := range t.Corpora {
		patterns, _ := c.Groups.Get(group)
		for _, pattern := range patterns {
			for _, dir := range []string{CorporaDir, LocalDir} {
				base := filepath.Join(c.Root, dir)
				matches, err := doublestar.Glob(os.DirFS(base), pattern+".txt")
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("corpus pattern %q: %w", pattern, err)
				}
				for _, m := range matches {
					name := strings.TrimSuffix(filepath.Base(m), ".txt")
					if !matchAny(matchers, name) {
						continue
					}
					found[name] = Corpus{
						Name:  name,
						Path:  filepath.Join(base, filepath.FromSlash(m)),
						Local: dir == LocalDir,
					}
				}
			}
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w for test %q", ErrNoCorpora, t.Name)
	}

	out := make([]Corpus, 0, len(found))
	for _, cp := range found {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FilterCorpora keeps the corpora whose name matches one of filters. Empty
// filters keep everything.
func FilterCorpora(cs []Corpus, filters []string) ([]Corpus, error) {
	matchers, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}
	var out []Corpus
	for _, c := range cs {
		if matchAny(matchers, c.Name) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for filter %v", ErrNoCorpora, filters)
	}
	return out, nil
}

// SplitFilters flattens repeatable, comma-separated filter arguments. A lone
// "*" means no filter.
func SplitFilters(args []string) []string {
	var out []string
	for _, a := range args {
		for _, f := range strings.Split(a, ",") {
			if f = strings.TrimSpace(f); f != "" && f != "*" {
				out = append(out, f)
			}
		}
	}
	return out
}

func compileFilters(filters []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, f := range SplitFilters(filters) {
		g, err := glob.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("corpus filter %q: %w", f, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(ms []glob.Glob, name string) bool {
	if len(ms) == 0 {
		return true
	}
	for _, m := range ms {
		if m.Match(name) {
			return true
		}
	}
	return false
}
