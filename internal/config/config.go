// Package config loads regtest.yaml, the declaration of a project's tests,
// pipelines, stages and corpora, and resolves runtime settings.
//
// Settings are resolved from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (REGTEST_*)
// 3. The settings block of regtest.yaml
// 4. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/regtest/internal/pipeline"
)

// FileName is the configuration file looked up in the project root.
const FileName = "regtest.yaml"

// searchDirs are tried in order when no folder is given.
var searchDirs = []string{".", "regtest", "test"}

// Config is a parsed regtest.yaml.
type Config struct {
	// Root is the directory holding the configuration file.
	Root string `yaml:"-" json:"root"`

	Settings Settings                  `yaml:"settings" json:"settings"`
	Defaults TestDefaults              `yaml:"defaults" json:"defaults"`
	Tests    Ordered[*Test]            `yaml:"tests" json:"tests"`
	Pipes    Ordered[*Pipe]            `yaml:"pipes" json:"-"`
	Steps    map[string]pipeline.Stage `yaml:"steps" json:"-"`
	Groups   Ordered[StringList]       `yaml:"corpora" json:"-"`
}

// Settings holds runtime knobs that are not part of a test's identity.
type Settings struct {
	// Procs is the number of parallel worker pipelines.
	Procs int `yaml:"procs" json:"procs"`

	// Timeout is the wall-clock ceiling per stage and per run, e.g. "30m".
	Timeout string `yaml:"timeout" json:"timeout"`

	// PageSize is the number of review entries per page.
	PageSize int `yaml:"page_size" json:"page_size"`

	// Port is the listen port of the review server.
	Port int `yaml:"port" json:"port"`

	// Nice is the priority increment of stage processes.
	Nice int `yaml:"nice" json:"nice"`

	// Tools names the cg helper executables.
	Tools pipeline.Tools `yaml:"tools" json:"tools"`
}

// TestDefaults are applied to every test that leaves a field unset.
type TestDefaults struct {
	Test    string     `yaml:"test" json:"test"`
	Pipe    string     `yaml:"pipe" json:"pipe"`
	Corpora StringList `yaml:"corpora" json:"corpora"`
	Env     []string   `yaml:"env" json:"env"`
	Gold    *bool      `yaml:"gold" json:"gold"`
	Git     *bool      `yaml:"git" json:"git"`
	Desc    string     `yaml:"desc" json:"desc"`
	Grep    string     `yaml:"grep" json:"grep"`
}

// Test is one named regression test.
type Test struct {
	Name    string     `yaml:"-" json:"name"`
	Pipe    string     `yaml:"pipe" json:"pipe"`
	Corpora StringList `yaml:"corpora" json:"corpora"`
	Env     []string   `yaml:"env" json:"env"`
	Gold    *bool      `yaml:"gold" json:"gold"`
	Git     *bool      `yaml:"git" json:"git"`
	Desc    string     `yaml:"desc" json:"desc"`
	// Grep restricts review results to entries matching this expression.
	Grep string `yaml:"grep" json:"grep"`
}

// UsesGit reports whether baseline changes are staged in version control.
func (t *Test) UsesGit() bool {
	return t.Git == nil || *t.Git
}

// UsesGold reports whether the test curates a gold standard.
func (t *Test) UsesGold() bool {
	return t.Gold != nil && *t.Gold
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Procs:    max(3, runtime.NumCPU()/4),
		Timeout:  pipeline.DefaultTimeout.String(),
		PageSize: 250,
		Port:     3000,
		Nice:     20,
		Tools:    pipeline.DefaultTools(),
	}
}

// TimeoutDuration parses Timeout, falling back to the default ceiling.
func (s Settings) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return pipeline.DefaultTimeout
	}
	return d
}

// Merge overwrites s with every non-zero field of o.
func (s Settings) Merge(o Settings) Settings {
	mergeInt(&s.Procs, o.Procs)
	mergeStr(&s.Timeout, o.Timeout)
	mergeInt(&s.PageSize, o.PageSize)
	mergeInt(&s.Port, o.Port)
	mergeInt(&s.Nice, o.Nice)
	mergeStr(&s.Tools.Sort, o.Tools.Sort)
	mergeStr(&s.Tools.Untrace, o.Tools.Untrace)
	return s
}

// FindRoot locates the directory holding regtest.yaml: folder when given,
// otherwise the first of ./, regtest/ and test/ that has one.
func FindRoot(folder string) (string, error) {
	if folder != "" {
		if _, err := os.Stat(filepath.Join(folder, FileName)); err != nil {
			return "", fmt.Errorf("%w: %s not found in %s", ErrNotFound, FileName, folder)
		}
		return folder, nil
	}
	for _, dir := range searchDirs {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in ./, regtest/, or test/", ErrNotFound, FileName)
}

// Load reads root/regtest.yaml, fills in defaults and applies environment
// overrides. A missing tests, pipes or corpora section is fatal.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Root = root
	return cfg, nil
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case cfg.Tests.Len() == 0:
		return nil, fmt.Errorf("%w: no tests defined", ErrInvalidConfig)
	case cfg.Pipes.Len() == 0:
		return nil, fmt.Errorf("%w: no pipes defined", ErrInvalidConfig)
	case cfg.Groups.Len() == 0:
		return nil, fmt.Errorf("%w: no corpora defined", ErrInvalidConfig)
	}

	for name, st := range cfg.Steps {
		if st.Name == "" {
			st.Name = name
			cfg.Steps[name] = st
		}
	}

	cfg.Settings = DefaultSettings().Merge(cfg.Settings)
	cfg.Settings = applyEnv(cfg.Settings)
	cfg.fillDefaults()

	for _, name := range cfg.Tests.Keys() {
		t, _ := cfg.Tests.Get(name)
		if _, ok := cfg.Pipes.Get(t.Pipe); !ok {
			return nil, fmt.Errorf("%w: test %q uses undefined pipe %q", ErrInvalidConfig, name, t.Pipe)
		}
		for _, group := range t.Corpora {
			if _, ok := cfg.Groups.Get(group); !ok {
				return nil, fmt.Errorf("%w: test %q uses undefined corpus group %q", ErrInvalidConfig, name, group)
			}
		}
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	d := &c.Defaults
	mergeStrIfEmpty(&d.Pipe, c.Pipes.Keys()[0])
	mergeStrIfEmpty(&d.Test, c.Tests.Keys()[0])
	if len(d.Corpora) == 0 {
		d.Corpora = StringList{c.Groups.Keys()[0]}
	}
	if d.Git == nil {
		git := true
		d.Git = &git
	}
	if d.Gold == nil {
		gold := false
		d.Gold = &gold
	}

	for _, name := range c.Tests.Keys() {
		t, _ := c.Tests.Get(name)
		if t == nil {
			t = &Test{}
			c.Tests.Set(name, t)
		}
		t.Name = name
		mergeStrIfEmpty(&t.Pipe, d.Pipe)
		mergeStrIfEmpty(&t.Desc, d.Desc)
		mergeStrIfEmpty(&t.Grep, d.Grep)
		if len(t.Corpora) == 0 {
			t.Corpora = append(StringList(nil), d.Corpora...)
		}
		if t.Env == nil {
			t.Env = append([]string(nil), d.Env...)
		}
		if t.Git == nil {
			t.Git = d.Git
		}
		if t.Gold == nil {
			t.Gold = d.Gold
		}
	}
}

// TestNames returns the declared test names in order.
func (c *Config) TestNames() []string {
	return c.Tests.Keys()
}

// Test returns the named test, or the default test when name is empty.
func (c *Config) Test(name string) (*Test, error) {
	if name == "" {
		name = c.Defaults.Test
	}
	t, ok := c.Tests.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTest, name)
	}
	return t, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(s Settings) Settings {
	if v, ok := getEnvInt("REGTEST_PROCS"); ok {
		s.Procs = v
	}
	if v := strings.TrimSpace(os.Getenv("REGTEST_TIMEOUT")); v != "" {
		s.Timeout = v
	}
	if v, ok := getEnvInt("REGTEST_PAGE_SIZE"); ok {
		s.PageSize = v
	}
	if v, ok := getEnvInt("REGTEST_PORT"); ok {
		s.Port = v
	}
	if v, ok := getEnvInt("REGTEST_NICE"); ok {
		s.Nice = v
	}
	return s
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeStrIfEmpty fills dst with src when dst is empty.
func mergeStrIfEmpty(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}
