//go:build unix

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusAcceptFlow(t *testing.T) {
	root := project(t)

	out, code := execute(t, "", "run", "-f", root, "-q", "-o", "json", "-P", "1")
	require.Equal(t, exitOK, code, out)
	var report struct {
		Unique int `json:"unique"`
		Seen   int `json:"seen"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Unique)
	assert.Equal(t, 2, report.Seen)

	out, code = execute(t, "", "status", "-f", root, "-o", "json")
	require.Equal(t, exitOK, code, out)
	var page struct {
		Counts struct {
			Unchanged int `json:"unchanged"`
		} `json:"counts"`
		Results map[string][]struct {
			ID      string   `json:"id"`
			Current []string `json:"current"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.Counts.Unchanged)
	first := page.Results["unchanged"][0]
	assert.Equal(t, []string{"Hi"}, first.Current)

	out, code = execute(t, "", "status", "-f", root)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Test t, corpora one")

	out, code = execute(t, "", "gold", "replace", "-f", root, "--ids", first.ID)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "updated 1: "+first.ID)

	out, code = execute(t, "", "accept", "-f", root, "--ids", first.ID+",unknown")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "accepted 1")

	out, code = execute(t, "", "diff", "-f", root, first.ID)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "no differences")

	out, code = execute(t, "ho\n", "inspect", "-f", root, "-")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "== mark ==\nHo\n")
}
