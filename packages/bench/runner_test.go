package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
	"github.com/abdul-hamid-achik/httpbridge/packages/transport"
)

func silentReporter() *Reporter {
	return NewReporter(WithNoProgress(true), WithNoColor(true), WithWriter(&bytes.Buffer{}))
}

func syncClient(t *testing.T) Client {
	t.Helper()
	tr, err := transport.NewSync()
	require.NoError(t, err)
	return SyncClient{T: tr}
}

func asyncClient(t *testing.T) Client {
	t.Helper()
	c, err := clientpool.New(clientpool.DefaultConfig())
	require.NoError(t, err)
	tr, err := transport.NewAsync(transport.WithClient(c))
	require.NoError(t, err)
	return AsyncClient{T: tr}
}

func helloServer(t *testing.T, count *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		_, _ = w.Write([]byte("Hello, World!"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunnerCountMode(t *testing.T) {
	var count atomic.Int64
	server := helloServer(t, &count)

	cfg := DefaultConfig()
	cfg.Requests = 50
	cfg.VUs = 4

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(50), count.Load())
	assert.Equal(t, int64(50), result.Summary.TotalRequests)
	assert.Equal(t, int64(50), result.Summary.SuccessCount)
	assert.Equal(t, int64(50*len("Hello, World!")), result.Summary.BytesRead)
	assert.True(t, result.Passed)
	assert.Contains(t, result.Summary.TargetBreakdown, "GET "+server.URL)
}

func TestRunnerAsyncStreaming(t *testing.T) {
	var count atomic.Int64
	server := helloServer(t, &count)

	cfg := DefaultConfig()
	cfg.Requests = 20
	cfg.VUs = 2

	runner := NewRunner(cfg, asyncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{
		Name: "stream",
		Request: &translate.Request{
			Method:     "GET",
			URL:        server.URL,
			Extensions: extensions.Extensions{extensions.KeyStream: extensions.BoolValue(true)},
		},
	})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(20), result.Summary.SuccessCount)
	assert.Equal(t, int64(20*len("Hello, World!")), result.Summary.BytesRead)
}

func TestRunnerWithErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Requests = 10

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Summary.ErrorCount)
	assert.Equal(t, int64(10), result.Summary.ErrorsByKind["status"])
}

func TestRunnerConnectErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := DefaultConfig()
	cfg.Requests = 3

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: url}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Summary.ErrorCount)
	assert.Equal(t, int64(3), result.Summary.ErrorsByKind["ConnectError"])
}

func TestRunnerThresholds(t *testing.T) {
	var count atomic.Int64
	server := helloServer(t, &count)

	cfg := DefaultConfig()
	cfg.Requests = 10
	cfg.Thresholds = Thresholds{P95: time.Nanosecond, ErrorRate: 0.5}

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Thresholds, 2)
	assert.True(t, result.HasThresholdFailures())
	assert.False(t, result.Passed)
}

func TestRunnerRateMode(t *testing.T) {
	var count atomic.Int64
	server := helloServer(t, &count)

	cfg := &Config{
		Mode:     RateMode,
		Duration: time.Second,
		Rate:     20,
		MaxVUs:   5,
	}

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 20, result.Summary.TotalRequests, 8)
	assert.Equal(t, int64(0), result.Summary.ErrorCount)
}

func TestRunnerVUMode(t *testing.T) {
	var count atomic.Int64
	server := helloServer(t, &count)

	cfg := &Config{
		Mode:      VUMode,
		Duration:  500 * time.Millisecond,
		VUs:       3,
		MaxVUs:    10,
		ThinkTime: 10 * time.Millisecond,
	}

	runner := NewRunner(cfg, asyncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, result.Summary.TotalRequests, int64(10))
	assert.Equal(t, int32(0), runner.Metrics().GetCurrentStats().ActiveVUs)
}

func TestRunnerRequestIDs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get(RequestIDHeader)] = true
		mu.Unlock()
		assert.Equal(t, "kept", r.Header.Get("X-Custom"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Requests = 5

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()), WithRequestIDs(true))
	runner.AddTarget(&Target{Request: &translate.Request{
		Method:  "GET",
		URL:     server.URL,
		Headers: map[string]string{"X-Custom": "kept"},
	}})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
	for id := range seen {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
}

func TestRunnerWeightedTargets(t *testing.T) {
	var a, b atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { a.Add(1) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { b.Add(1) })
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Requests = 200
	cfg.VUs = 4

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Name: "a", Weight: 3, Request: &translate.Request{Method: "GET", URL: server.URL + "/a"}})
	runner.AddTarget(&Target{Name: "b", Weight: 1, Request: &translate.Request{Method: "GET", URL: server.URL + "/b"}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(200), a.Load()+b.Load())
	assert.Greater(t, a.Load(), b.Load())
	assert.Len(t, result.Summary.TargetBreakdown, 2)
}

func TestRunnerNoTargets(t *testing.T) {
	runner := NewRunner(DefaultConfig(), syncClient(t), WithReporter(silentReporter()))
	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerInvalidConfig(t *testing.T) {
	runner := NewRunner(&Config{Mode: RateMode}, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: "http://127.0.0.1"}})
	_, err := runner.Run(context.Background())
	assert.ErrorContains(t, err, "invalid config")
}

func TestRunnerGracefulShutdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Requests = 100000
	cfg.VUs = 2

	runner := NewRunner(cfg, syncClient(t), WithReporter(silentReporter()))
	runner.AddTarget(&Target{Request: &translate.Request{Method: "GET", URL: server.URL}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Less(t, result.Summary.TotalRequests, int64(100000))
}

func TestReporterJSONSummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("a", 2*time.Millisecond, 13, nil)
	m.Stop()

	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoColor(true))
	require.NoError(t, r.JSONSummary(m.GetSummary(), []ThresholdResult{{Name: "p95", Passed: true}}))

	var out JSONSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, int64(1), out.Requests.Total)
	assert.Equal(t, int64(13), out.BytesRead)
	assert.Len(t, out.Thresholds, 1)
	assert.Contains(t, out.Targets, "a")
}

func TestReporterSummaryText(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("a", time.Millisecond, 0, nil)
	m.Record("a", time.Millisecond, 0, ErrUnexpectedStatus)
	m.Stop()

	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	r.Summary(m.GetSummary(), nil)

	out := buf.String()
	assert.Contains(t, out, "BENCH SUMMARY")
	assert.Contains(t, out, "ERRORS")
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "PER-TARGET BREAKDOWN")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))
	assert.Equal(t, "250ms", formatLatency(250*time.Millisecond))
}
