package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitInit(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
	return dir
}

func staged(t *testing.T, dir string) []string {
	t.Helper()
	cmd := exec.Command("git", "ls-files", "--cached")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.Fields(string(out))
}

func TestGitAddForget(t *testing.T) {
	dir := gitInit(t)
	ctx := context.Background()
	path := filepath.Join(dir, "expected-a-tok.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))

	g := NewGit(dir, nil)
	require.NoError(t, g.Add(ctx, path))
	assert.Equal(t, []string{"expected-a-tok.txt"}, staged(t, dir))

	require.NoError(t, g.Forget(ctx, path, filepath.Join(dir, "never-tracked.txt")))
	assert.Empty(t, staged(t, dir))
	_, err := os.Stat(path)
	assert.NoError(t, err, "forget keeps the file on disk")

	assert.NoError(t, g.Add(ctx))
}

func TestDetect(t *testing.T) {
	dir := gitInit(t)
	ctx := context.Background()
	_, ok := Detect(ctx, dir, nil).(*Git)
	assert.True(t, ok)

	_, ok = Detect(ctx, t.TempDir(), nil).(Nop)
	assert.True(t, ok)
}
