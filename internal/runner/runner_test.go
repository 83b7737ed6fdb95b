//go:build unix

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/corpus"
	"github.com/boshu2/regtest/internal/pipeline"
)

func writeCorpus(t *testing.T, dir, name, body string) corpus.Source {
	t.Helper()
	path := filepath.Join(dir, name+".txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return corpus.Source{Name: name, Path: path}
}

func newJob(stages []pipeline.Stage, sources ...corpus.Source) Job {
	return Job{
		Test:    "default",
		Stages:  stages,
		Corpora: sources,
		Procs:   2,
		Timeout: 20 * time.Second,
		Nice:    0,
	}
}

func TestRunDedupesAndReassembles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	src := t.TempDir()
	store := artifact.NewStore(root)
	a := writeCorpus(t, src, "a", "hello world\nfoo   bar\n")
	b := writeCorpus(t, src, "b", "hello world\n")

	r := New(store, WithProgress(func(Progress) {}))
	report, err := r.Run(context.Background(), newJob([]pipeline.Stage{
		{Name: "id", Cmd: "cat"},
		{Name: "up", Cmd: "sed s/hello/HELLO/"},
	}, a, b))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Unique)
	assert.Equal(t, 2, report.Seen)
	assert.Equal(t, 2, report.Workers)
	assert.Zero(t, report.Shortfall())
	assert.Empty(t, report.Failures)
	assert.NotEmpty(t, report.RunID)

	hello := corpus.Hash("hello world")
	foo := corpus.Hash("foo bar")

	upA, err := store.ReadBlocks(store.OutputPath("default", "a", "up"))
	require.NoError(t, err)
	require.Len(t, upA, 2)
	assert.Equal(t, "HELLO world", upA[hello].Text)
	assert.Equal(t, "foo bar", upA[foo].Text)

	upB, err := store.ReadBlocks(store.OutputPath("default", "b", "up"))
	require.NoError(t, err)
	require.Len(t, upB, 1)
	assert.Equal(t, "HELLO world", upB[hello].Text)

	inA, err := store.ReadBlocks(store.OutputPath("default", "a", artifact.InputStage))
	require.NoError(t, err)
	assert.Equal(t, "hello world", inA[hello].Text)

	// Blocks follow corpus line order.
	raw, err := os.ReadFile(store.OutputPath("default", "a", "id"))
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(raw), hello), strings.Index(string(raw), foo))

	idx, err := os.ReadFile(store.IndexPath("default", "a"))
	require.NoError(t, err)
	assert.Equal(t, hello+"\t1\n"+foo+"\t2\n", string(idx))

	_, err = os.Stat(filepath.Join(store.ScratchDir("default"), doneFile))
	assert.NoError(t, err, "completion marker")
	_, err = os.Stat(r.LockPath("default"))
	assert.True(t, os.IsNotExist(err), "lock must be released")
}

func TestRunReportsShortfall(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	src := t.TempDir()
	store := artifact.NewStore(root)
	a := writeCorpus(t, src, "a", "keep me\ndrop me\n")

	job := newJob([]pipeline.Stage{
		{Name: "filter", Cmd: `awk 'BEGIN{RS=""; ORS="\n\n"} !/drop/'`},
	}, a)
	report, err := New(store).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Unique)
	assert.Equal(t, 1, report.Seen)
	assert.Equal(t, 1, report.Shortfall())
	assert.Equal(t, corpus.Hash("drop me"), report.ExampleMissing)
}

func TestRunStageFailureIsReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := t.TempDir()
	store := artifact.NewStore(t.TempDir())
	a := writeCorpus(t, src, "a", "one\n")

	job := newJob([]pipeline.Stage{
		{Name: "bad", Cmd: "cat >/dev/null; echo boom >&2; exit 2"},
	}, a)
	report, err := New(store).Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Shortfall())

	stderr, err := os.ReadFile(stderrFile(store.ScratchDir("default"), "bad", 0))
	require.NoError(t, err)
	assert.Equal(t, "boom\n", string(stderr))
}

func TestRunRefusesLiveLock(t *testing.T) {
	src := t.TempDir()
	store := artifact.NewStore(t.TempDir())
	a := writeCorpus(t, src, "a", "one\n")

	r := New(store, WithProbe(fakeProbe(true, "regtest run")))
	require.NoError(t, os.MkdirAll(store.RunDir("default"), 0755))
	require.NoError(t, os.WriteFile(r.LockPath("default"), []byte("424242"), 0644))

	_, err := r.Run(context.Background(), newJob([]pipeline.Stage{{Name: "id", Cmd: "cat"}}, a))
	assert.True(t, errors.Is(err, ErrLockHeld), "got %v", err)
}

func TestRunRejectsBadInput(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	_, err := New(store).Run(context.Background(), Job{Test: "t"})
	assert.ErrorIs(t, err, ErrNoCorpora)

	src := writeCorpus(t, t.TempDir(), "a", "x\n")
	_, err = New(store).Run(context.Background(), Job{Test: "t", Corpora: []corpus.Source{src}})
	assert.ErrorIs(t, err, pipeline.ErrNoStages)
}
