package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/review"
)

const testYAML = `
tests:
  t:
    desc: upper-cases
    git: false
pipes:
  p:
    - name: up
      cmd: sed s/^abc/ABC/
corpora:
  all: "*"
`

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte(testYAML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.CorporaDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.CorporaDir, "one.txt"), []byte("abc\n\ndef\n"), 0644))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	st := cfg.Settings
	st.Procs, st.Nice = 1, 0
	srv := New(review.NewService(cfg, review.WithSettings(st)), WithNonce("n0"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func call(t *testing.T, ts *httptest.Server, form url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.PostForm(ts.URL+CallbackPath, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestNonceAndAction(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := call(t, ts, url.Values{"a": {"init"}, "n": {"stale"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, ts, url.Values{"t": {"t"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := call(t, ts, url.Values{"a": {"frobnicate"}, "n": {"n0"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown action")
}

func TestInit(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, url.Values{"a": {"init-regtest"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "n0", body["nonce"])
	assert.Equal(t, "t", body["test"])
	assert.Equal(t, []any{"up"}, body["stages"])
	assert.Equal(t, []any{"one"}, body["corpora"])
	assert.EqualValues(t, 250, body["pagesize"])
	tests, _ := body["tests"].([]any)
	require.Len(t, tests, 1)
	assert.Equal(t, "upper-cases", tests[0].(map[string]any)["desc"])
}

func TestLoadBeforeRun(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, url.Values{"a": {"load"}, "t": {"t"}})
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Equal(t, rerunHint, body["error"])
}

func TestValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	tests := []struct {
		name string
		form url.Values
	}{
		{"bad page", url.Values{"a": {"load"}, "p": {"x"}}},
		{"unknown test", url.Values{"a": {"load"}, "t": {"nope"}}},
		{"accept without ids", url.Values{"a": {"accept"}, "t": {"t"}}},
		{"gold-set without list", url.Values{"a": {"gold-set"}, "hs": {"h"}, "gs": {"not json"}}},
		{"accept-nd without corpus", url.Values{"a": {"accept-nd"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, ts, tt.form)
			assert.Equal(t, http.StatusBadRequest, status, body)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+CallbackPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGeneratedNonce(t *testing.T) {
	a, b := New(nil), New(nil)
	assert.Len(t, a.Nonce(), 12)
	assert.NotEqual(t, a.Nonce(), b.Nonce())
}
