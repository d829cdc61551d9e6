package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

func helloServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/echo" {
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("X-Method", r.Method)
			w.Write(body)
			return
		}
		w.Write([]byte("hello"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAsync_SharesClient(t *testing.T) {
	a, err := NewAsync()
	require.NoError(t, err)
	b, err := NewAsync()
	require.NoError(t, err)

	assert.Same(t, a.Client(), b.Client())
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestAsync_HandleRequest(t *testing.T) {
	server := helloServer(t)

	tr, err := NewAsync()
	require.NoError(t, err)

	p, err := tr.HandleRequest(context.Background(), &translate.Request{Method: "GET", URL: server.URL})
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
	}

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("hello"), resp.Content)
}

func TestAsync_ValidationErrorIsImmediate(t *testing.T) {
	tr, err := NewAsync()
	require.NoError(t, err)

	p, err := tr.HandleRequest(context.Background(), &translate.Request{Method: "GET", URL: "::nope"})
	assert.Nil(t, p)
	assert.True(t, httperr.Is(err, httperr.InvalidURL), "got %v", err)
}

func TestAsync_Streaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "part%d;", i)
			flusher.Flush()
		}
	}))
	defer server.Close()

	m := metrics.New()
	tr, err := NewAsync(WithMetrics(m))
	require.NoError(t, err)

	p, err := tr.HandleRequest(context.Background(), &translate.Request{
		Method:     "GET",
		URL:        server.URL,
		Extensions: extensions.Extensions{"stream": extensions.BoolValue(true)},
	})
	require.NoError(t, err)

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, resp.IsStream())

	body, err := resp.Body(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "part0;part1;part2;", string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", metrics.OutcomeOK)))
}

func TestAsync_AbandonedStreamReleasesProducer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	m := metrics.New()
	tr, err := NewAsync(WithMetrics(m))
	require.NoError(t, err)

	p, err := tr.HandleRequest(context.Background(), &translate.Request{
		Method:     "GET",
		URL:        server.URL,
		Extensions: extensions.Extensions{"stream": extensions.BoolValue(true)},
	})
	require.NoError(t, err)

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)

	chunk, err := resp.Stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", string(chunk))

	require.NoError(t, resp.Close())
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ActiveStreams) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAsync_ConcurrentRequests(t *testing.T) {
	server := helloServer(t)

	tr, err := NewAsync()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := tr.HandleRequest(context.Background(), &translate.Request{Method: "GET", URL: server.URL})
			if err != nil {
				errs <- err
				return
			}
			if _, err := p.Wait(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestPending_WaitContextEnds(t *testing.T) {
	p := newPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	p.complete(&translate.Response{Status: 204}, nil)
	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

func TestSync_OwnClient(t *testing.T) {
	m := metrics.New()
	a, err := NewSync(WithMetrics(m))
	require.NoError(t, err)
	b, err := NewSync(WithMetrics(m))
	require.NoError(t, err)

	assert.NotSame(t, a.Client(), b.Client())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClientsBuilt.WithLabelValues("sync")))
	assert.NoError(t, a.Close())
}

func TestSync_HandleRequest(t *testing.T) {
	server := helloServer(t)

	tr, err := NewSync()
	require.NoError(t, err)

	resp, err := tr.HandleRequest(context.Background(), &translate.Request{
		Method:  "PUT",
		URL:     server.URL + "/echo",
		Content: []byte("payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", string(resp.Content))
	assert.Equal(t, "PUT", resp.Header("x-method"))
}

func TestSync_StreamingIsBuffered(t *testing.T) {
	server := helloServer(t)

	tr, err := NewSync()
	require.NoError(t, err)

	resp, err := tr.HandleRequest(context.Background(), &translate.Request{
		Method:     "GET",
		URL:        server.URL,
		Extensions: extensions.Extensions{"stream": extensions.BoolValue(true), "x": extensions.StringValue("y")},
	})
	require.NoError(t, err)
	assert.Equal(t, extensions.StringValue("y"), resp.Extensions["x"])

	chunk, err := resp.Stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))

	_, err = resp.Stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSync_WithConfigTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	tr, err := NewSync(WithConfig(clientpool.Config{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)

	_, err = tr.HandleRequest(context.Background(), &translate.Request{Method: "GET", URL: server.URL})
	require.Error(t, err)
	assert.True(t, httperr.Is(err, httperr.RequestTimeout), "got %v", err)
}

func TestSync_InvalidConfig(t *testing.T) {
	_, err := NewSync(WithConfig(clientpool.Config{Timeout: -time.Second}))
	assert.Error(t, err)
}

func TestPending_AbandonedStreamIsReleased(t *testing.T) {
	respond := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-respond
		fmt.Fprint(w, "first")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	m := metrics.New()
	tr, err := NewAsync(WithMetrics(m))
	require.NoError(t, err)

	p, err := tr.HandleRequest(context.Background(), &translate.Request{
		Method:     "GET",
		URL:        server.URL,
		Extensions: extensions.Extensions{"stream": extensions.BoolValue(true)},
	})
	require.NoError(t, err)

	gaveUp, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Wait(gaveUp)
	require.Error(t, err)

	close(respond)
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ActiveStreams) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAsync_CancelReleasesUnreadStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := make([]byte, 4096)
		for r.Context().Err() == nil {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	m := metrics.New()
	tr, err := NewAsync(WithMetrics(m))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, err := tr.HandleRequest(ctx, &translate.Request{
		Method:     "GET",
		URL:        server.URL,
		Extensions: extensions.Extensions{"stream": extensions.BoolValue(true)},
	})
	require.NoError(t, err)

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, resp.IsStream())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams))

	// never read; let the queue fill up
	time.Sleep(100 * time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ActiveStreams) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
