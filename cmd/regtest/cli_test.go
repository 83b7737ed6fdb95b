package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/regtest/internal/config"
)

const cliYAML = `
tests:
  t:
    desc: capitalizes
    git: false
pipes:
  p:
    - name: mark
      cmd: sed s/^h/H/
corpora:
  all: "*"
`

// project writes a minimal project and points -f at it.
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte(cliYAML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.CorporaDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.CorporaDir, "one.txt"), []byte("hi\n\nho\n"), 0644))
	return root
}

// execute runs the root command with args and returns stdout and the exit code.
func execute(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	folder, corpora, procs, verbose, output, logJSON = "", nil, 0, false, "table", false
	statusGold, statusPage, statusPageSize = "*", 1, 0
	acceptIDs, acceptStep, ndCorpus = nil, "", ""
	goldIDs, goldCandidates = nil, nil
	runQuiet = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), exitCode(err)
}

func TestVersion(t *testing.T) {
	out, code := execute(t, "", "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "regtest version dev")
}

func TestCompletion(t *testing.T) {
	out, code := execute(t, "", "completion", "bash")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "regtest")

	_, code = execute(t, "", "completion", "tcsh")
	assert.NotEqual(t, exitOK, code)
}

func TestStatusBeforeRun(t *testing.T) {
	root := project(t)
	_, code := execute(t, "", "status", "-f", root)
	assert.Equal(t, exitRerun, code)
}

func TestUsageErrors(t *testing.T) {
	root := project(t)
	_, code := execute(t, "", "accept", "-f", root)
	assert.Equal(t, exitUsage, code)

	_, code = execute(t, "", "status", "nope", "-f", root)
	assert.Equal(t, exitUsage, code)

	_, code = execute(t, "", "status", "-f", root, "-o", "xml")
	assert.Equal(t, exitUsage, code)

	_, code = execute(t, "", "accept-nd", "-f", root)
	assert.Equal(t, exitUsage, code)

	_, code = execute(t, "", "status", "-f", filepath.Join(root, "missing"))
	assert.Equal(t, exitUsage, code)
}

func TestInspectInput(t *testing.T) {
	got, err := inspectInput("text", nil)
	require.NoError(t, err)
	assert.Equal(t, "text", got)

	got, err = inspectInput("-", strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", got)

	_, err = inspectInput("-", strings.NewReader("  \n"))
	assert.ErrorIs(t, err, errUsage)
}

func TestCleanupCommand(t *testing.T) {
	root := project(t)
	stale := filepath.Join(root, "expected", "t", "gone", "expected-gone-mark.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("x\n"), 0644))

	out, code := execute(t, "", "cleanup", "-f", root, "-o", "json")
	require.Equal(t, exitOK, code, out)
	var res struct {
		Removed []string `json:"removed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{stale}, res.Removed)
	assert.NoFileExists(t, stale)
}
