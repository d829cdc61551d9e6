package echo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHello(t *testing.T) {
	server := newTestServer(t)

	resp, body := get(t, server.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Greeting, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestUnknownPath(t *testing.T) {
	server := newTestServer(t)

	resp, _ := get(t, server.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEcho(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/echo?a=1", strings.NewReader("payload"))
	require.NoError(t, err)
	req.Header.Set("X-Custom", "value")
	req.Header.Set("X-Echo-Reply", "mirrored")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out EchoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, http.MethodPost, out.Method)
	assert.Equal(t, "/echo", out.Path)
	assert.Equal(t, "payload", out.Body)
	assert.Equal(t, []string{"1"}, out.Query["a"])
	assert.Equal(t, []string{"value"}, out.Headers["X-Custom"])
	assert.NotEmpty(t, out.Headers["Host"])
	assert.Equal(t, "mirrored", resp.Header.Get("Reply"))
}

func TestStream(t *testing.T) {
	server := newTestServer(t)

	resp, body := get(t, server.URL+"/stream?chunks=3&size=4")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "aaaabbbbcccc", body)
}

func TestStreamInvalidParams(t *testing.T) {
	server := newTestServer(t)

	for _, q := range []string{"chunks=x", "size=-1", "interval=soon"} {
		resp, _ := get(t, server.URL+"/stream?"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestStatus(t *testing.T) {
	server := newTestServer(t)

	resp, body := get(t, server.URL+"/status/418")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "418 I'm a teapot", body)

	resp, _ = get(t, server.URL+"/status/abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRedirect(t *testing.T) {
	server := newTestServer(t)

	resp, body := get(t, server.URL+"/redirect/3")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Greeting, body)
	assert.Equal(t, "/", resp.Request.URL.Path)
}

func TestDelay(t *testing.T) {
	server := newTestServer(t, WithDelay(50*time.Millisecond))

	start := time.Now()
	_, body := get(t, server.URL+"/")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, Greeting, body)
}

func TestStartWithContext(t *testing.T) {
	s := NewServer(WithAddr("127.0.0.1:0"))
	require.NoError(t, s.Listen())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())
	assert.True(t, strings.HasPrefix(s.URL(), "http://127.0.0.1:"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.StartWithContext(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.URL() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000", NewServer().URL())
	assert.Equal(t, "http://10.0.0.1:9000", NewServer(WithAddr("10.0.0.1:9000")).URL())
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, NewServer().Shutdown(context.Background()))
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	server := newTestServer(t, WithMetrics(m, true))

	get(t, server.URL+"/")
	get(t, server.URL+"/status/503")
	get(t, server.URL+"/missing")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServedTotal.WithLabelValues("/{$}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServedTotal.WithLabelValues("/status/{code}", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServedTotal.WithLabelValues("unmatched", "4xx")))

	resp, body := get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "httpbridge_served_total")
}
