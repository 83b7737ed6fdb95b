package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/config"
)

const fixtureYAML = `
tests:
  t:
    git: false
  g:
    git: false
    grep: needle
pipes:
  p:
    - name: a
      cmd: cat
    - name: b
      cmd: sed s/^x/y/
    - name: c
      cmd: sed s/^q/Q/
corpora:
  all: "*"
`

// fixtureStages are the artifact stages written per entry: input, a, b, c.
var fixtureStages = []string{artifact.InputStage, "a", "b", "c"}

var fixtureCorpora = []string{"one", "two"}

// fixture fakes the output of a finished run so review can be tested without
// executing anything.
type fixture struct {
	t     *testing.T
	test  string
	root  string
	store *artifact.Store
	svc   *Service
	data  map[string]map[string][]string
}

func newFixture(t *testing.T, test string) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte(fixtureYAML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.CorporaDir), 0755))
	for _, c := range fixtureCorpora {
		require.NoError(t, os.WriteFile(filepath.Join(root, config.CorporaDir, c+".txt"), []byte("x\n"), 0644))
	}
	cfg, err := config.Load(root)
	require.NoError(t, err)
	return &fixture{
		t:     t,
		test:  test,
		root:  root,
		store: artifact.NewStore(root),
		svc:   NewService(cfg),
		data:  make(map[string]map[string][]string),
	}
}

// set records the input and stage outputs of id in corpus.
func (f *fixture) set(corpusName, id string, outs ...string) {
	require.Len(f.t, outs, len(fixtureStages))
	if f.data[corpusName] == nil {
		f.data[corpusName] = make(map[string][]string)
	}
	f.data[corpusName][id] = outs
}

// setAll records id in every corpus given.
func (f *fixture) setAll(corpora []string, id string, outs ...string) {
	for _, c := range corpora {
		f.set(c, id, outs...)
	}
}

func (f *fixture) drop(corpusName, id string) {
	delete(f.data[corpusName], id)
}

// flush writes indexes and outputs of every corpus, empty ones included, and
// drops any cached session.
func (f *fixture) flush() {
	for _, c := range fixtureCorpora {
		entries := f.data[c]
		ids := make([]string, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var idx strings.Builder
		for i, id := range ids {
			fmt.Fprintf(&idx, "%s\t%d\n", id, i+1)
		}
		require.NoError(f.t, os.MkdirAll(f.store.RunDir(f.test), 0755))
		require.NoError(f.t, os.WriteFile(f.store.IndexPath(f.test, c), []byte(idx.String()), 0644))

		for si, stage := range fixtureStages {
			var blocks []artifact.Block
			for _, id := range ids {
				if text := entries[id][si]; text != "" {
					blocks = append(blocks, artifact.Block{ID: id, Text: text})
				}
			}
			require.NoError(f.t, f.store.WriteBlocks(f.store.OutputPath(f.test, c, stage), blocks))
		}
	}
	f.svc.Registry().Invalidate(f.test)
}

func (f *fixture) load(req LoadRequest) *Page {
	f.t.Helper()
	req.Test = f.test
	page, err := f.svc.Load(context.Background(), req)
	require.NoError(f.t, err)
	return page
}

func (f *fixture) baseline(corpusName, stage string) map[string]artifact.Block {
	f.t.Helper()
	blocks, err := f.store.ReadBlocks(f.store.BaselinePath(f.test, corpusName, stage, false))
	require.NoError(f.t, err)
	return blocks
}

func ids(es []*Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
