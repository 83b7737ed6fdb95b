//go:build unix

package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoadAccept(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := call(t, ts, url.Values{"a": {"run"}, "t": {"t"}, "c": {"*"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["good"])

	status, body = call(t, ts, url.Values{"a": {"load"}, "t": {"t"}, "c": {"one"}, "g": {"*"}, "p": {"0"}, "z": {"10"}})
	require.Equal(t, http.StatusOK, status, body)
	counts := body["counts"].(map[string]any)
	assert.EqualValues(t, 2, counts["unchanged"])

	results := body["results"].(map[string]any)
	unchanged := results["unchanged"].([]any)
	first := unchanged[0].(map[string]any)
	assert.Equal(t, []any{"ABC"}, first["current"])
	id := first["id"].(string)

	status, body = call(t, ts, url.Values{"a": {"gold-set"}, "t": {"t"}, "hs": {id}, "gs": {`["ABC","abc"]`}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{id}, body["hs"])

	status, body = call(t, ts, url.Values{"a": {"load"}, "t": {"t"}, "g": {"m"}})
	require.Equal(t, http.StatusOK, status, body)
	golden := body["results"].(map[string]any)["golden"].([]any)
	require.Len(t, golden, 1)

	status, body = call(t, ts, url.Values{"a": {"accept"}, "t": {"t"}, "hs": {id + ";missing"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{id}, body["hs"])

	status, body = call(t, ts, url.Values{"a": {"inspect"}, "t": {"t"}, "txt": {"abc"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ABC\n", body["outputs"].(map[string]any)["up"])
}

func TestServeShutsDown(t *testing.T) {
	_, srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
