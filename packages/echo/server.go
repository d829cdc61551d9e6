// Package echo provides the benchmark target server: a plain "Hello, World!"
// root plus a few endpoints for exercising headers, streaming, status codes
// and redirects.
package echo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/diag"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
)

// DefaultAddr is where the benchmark client expects the server
const DefaultAddr = ":8000"

// Greeting is the body served at /
const Greeting = "Hello, World!"

const maxEchoBody = 10 << 20

// Server is the benchmark HTTP server
type Server struct {
	addr    string
	delay   time.Duration
	verbose bool
	logger  *zap.Logger
	metrics *metrics.Metrics
	expose  bool

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option is a functional option for Server
type Option func(*Server)

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose logs every request
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics counts served requests on m. When expose is set the
// collectors are also served at /metrics.
func WithMetrics(m *metrics.Metrics, expose bool) Option {
	return func(s *Server) {
		s.metrics = m
		s.expose = expose
	}
}

// NewServer creates a new server
func NewServer(opts ...Option) *Server {
	s := &Server{
		addr: DefaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = diag.Named("echo")
	}
	return s
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleHello)
	mux.HandleFunc("/echo", s.handleEcho)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/status/{code}", s.handleStatus)
	mux.HandleFunc("/redirect/{n}", s.handleRedirect)
	if s.metrics != nil && s.expose {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.wrap(mux)
}

func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.metrics != nil {
			route := r.Pattern // set by the mux during dispatch
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RequestServed(route, rec.status)
		}

		if s.verbose {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		}
	})
}

// Listen binds the listen address. Addr is valid afterwards.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL clients should use
func (s *Server) URL() string {
	addr := s.Addr()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	server, ln := s.server, s.listener
	s.mu.Unlock()

	s.logger.Info("echo server listening", zap.String("url", s.URL()))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully
func (s *Server) StartWithContext(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	return s.Start()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Greeting))
}

// EchoResponse is the body served by /echo
type EchoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query,omitempty"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := EchoResponse{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header,
		Body:    string(body),
	}
	if len(r.URL.Query()) > 0 {
		resp.Query = r.URL.Query()
	}
	if r.Host != "" {
		resp.Headers = cloneWith(r.Header, "Host", r.Host)
	}

	w.Header().Set("Content-Type", "application/json")
	// X-Echo-Foo: bar on the request becomes Foo: bar on the response
	for _, name := range sortedKeys(r.Header) {
		if rest, ok := strings.CutPrefix(name, "X-Echo-"); ok && rest != "" {
			for _, v := range r.Header[name] {
				w.Header().Add(rest, v)
			}
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStream writes chunks=N pieces of size=S bytes, flushing after each
// and waiting interval=D between them.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chunks, err := intParam(q.Get("chunks"), 10)
	if err != nil {
		http.Error(w, "invalid chunks", http.StatusBadRequest)
		return
	}
	size, err := intParam(q.Get("size"), 1024)
	if err != nil {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	var interval time.Duration
	if v := q.Get("interval"); v != "" {
		interval, err = time.ParseDuration(v)
		if err != nil {
			http.Error(w, "invalid interval", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for i := range chunks {
		if i > 0 && interval > 0 {
			select {
			case <-time.After(interval):
			case <-r.Context().Done():
				return
			}
		}
		chunk := bytes.Repeat([]byte{byte('a' + i%26)}, size)
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 200 || code > 999 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

// handleRedirect redirects n times before landing on /
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		http.Error(w, "invalid redirect count", http.StatusBadRequest)
		return
	}
	target := "/"
	if n > 1 {
		target = fmt.Sprintf("/redirect/%d", n-1)
	}
	if n == 0 {
		s.handleHello(w, r)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q", v)
	}
	return n, nil
}

func sortedKeys(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneWith(h http.Header, name, value string) map[string][]string {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	out.Set(name, value)
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
