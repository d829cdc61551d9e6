package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

// RequestIDHeader carries a fresh UUID on every request when request IDs
// are enabled
const RequestIDHeader = "X-Request-Id"

const (
	rampInterval     = 100 * time.Millisecond
	progressInterval = 500 * time.Millisecond
)

// Runner executes one benchmark run against a Client
type Runner struct {
	config    *Config
	client    Client
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter

	version    string
	transport  string
	requestIDs bool
}

type RunnerOption func(*Runner)

func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) { r.reporter = reporter }
}

// WithVersion sets the version shown in the header
func WithVersion(version string) RunnerOption {
	return func(r *Runner) { r.version = version }
}

// WithTransportName sets the transport label shown in the header
func WithTransportName(name string) RunnerOption {
	return func(r *Runner) { r.transport = name }
}

// WithRequestIDs stamps every request with a unique RequestIDHeader
func WithRequestIDs(enabled bool) RunnerOption {
	return func(r *Runner) { r.requestIDs = enabled }
}

func NewRunner(config *Config, client Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		client:    client,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
		transport: "async",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	return r
}

// AddTarget registers a request to benchmark. An unnamed target is named
// "<METHOD> <URL>".
func (r *Runner) AddTarget(t *Target) {
	if t.Name == "" && t.Request != nil {
		t.Name = t.Request.Method + " " + t.Request.URL
	}
	r.scheduler.AddTarget(t)
}

// Metrics returns the collector for the run
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Result is the outcome of Run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures reports whether any threshold failed
func (r *Result) HasThresholdFailures() bool {
	return slices.ContainsFunc(r.Thresholds, func(tr ThresholdResult) bool { return !tr.Passed })
}

// Run executes the benchmark until its request count or duration is
// reached, or ctx is cancelled. Cancellation is not an error: the partial
// run is summarized.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if r.client == nil {
		return nil, errors.New("no client configured")
	}
	targets := r.scheduler.Targets()
	if len(targets) == 0 {
		return nil, errors.New("no targets to benchmark")
	}

	label := targets[0].Name
	if extra := len(targets) - 1; extra > 0 {
		label = fmt.Sprintf("%s (+%d more)", label, extra)
	}
	r.reporter.Header(r.version, label, r.config, r.transport)

	if r.config.Mode != CountMode {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	r.metrics.Start()
	stopProgress := r.startProgress()
	switch r.config.Mode {
	case RateMode:
		r.runRate(ctx)
	case VUMode:
		r.runVUs(ctx)
	default:
		r.runCount(ctx)
	}
	r.metrics.Stop()
	stopProgress()
	r.reporter.ClearProgress()

	res := &Result{Summary: r.metrics.GetSummary()}
	if r.config.Thresholds.HasThresholds() {
		res.Thresholds = r.config.Thresholds.Evaluate(res.Summary)
	}
	res.Passed = !res.HasThresholdFailures()

	r.reporter.Summary(res.Summary, res.Thresholds)
	return res, nil
}

// runCount shares config.Requests requests between config.VUs workers
func (r *Runner) runCount(ctx context.Context) {
	var remaining atomic.Int64
	remaining.Store(int64(r.config.Requests))
	workers := min(max(r.config.VUs, 1), r.config.Requests)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			r.metrics.IncrementActiveVUs()
			defer r.metrics.DecrementActiveVUs()

			for ctx.Err() == nil && remaining.Add(-1) >= 0 {
				_ = r.execute(ctx, r.scheduler.SelectTarget())
				if !sleep(ctx, r.config.ThinkTime) {
					return
				}
			}
		})
	}
	wg.Wait()
}

// runRate issues requests at the limiter's pace, each on its own
// goroutine, until ctx ends. In-flight requests are bounded by MaxVUs.
func (r *Runner) runRate(ctx context.Context) {
	if r.config.RampUp > 0 {
		go r.every(ctx, rampInterval, func(elapsed time.Duration) {
			r.scheduler.UpdateRate(r.scheduler.RateAt(elapsed))
		})
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		if r.scheduler.Wait(ctx) != nil {
			return
		}
		target := r.scheduler.SelectTarget()
		if r.scheduler.Acquire(ctx) != nil {
			return
		}
		wg.Go(func() {
			defer r.scheduler.Release()
			r.metrics.IncrementActiveVUs()
			defer r.metrics.DecrementActiveVUs()
			_ = r.execute(ctx, target)
		})
	}
}

// runVUs keeps a pool of virtual users busy until ctx ends, growing it
// along the ramp-up
func (r *Runner) runVUs(ctx context.Context) {
	pool := NewVUPool(r.scheduler, r.config, r.metrics, r.execute)
	pool.Start(ctx)

	if r.config.RampUp > 0 {
		go r.every(ctx, rampInterval, func(elapsed time.Duration) {
			pool.Scale(r.scheduler.VUsAt(elapsed))
		})
	}

	<-ctx.Done()
	pool.Stop()
	pool.Wait()
}

// every calls fn with the time since it started on each tick until ctx
// ends
func (r *Runner) every(ctx context.Context, interval time.Duration, fn func(elapsed time.Duration)) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(time.Since(start))
		}
	}
}

// startProgress redraws the progress block and samples the time series
// until the returned func is called
func (r *Runner) startProgress() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	total := 0
	if r.config.Mode == CountMode {
		total = r.config.Requests
	}
	go func() {
		defer close(done)
		r.every(ctx, progressInterval, func(time.Duration) {
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration, total)
			r.metrics.AddTimePoint(r.metrics.Snapshot())
		})
	}()

	return func() {
		cancel()
		<-done
	}
}

// execute sends one request, drains the body and records the outcome.
// Failures caused by the end of the run count as cut off, not as errors.
func (r *Runner) execute(ctx context.Context, t *Target) error {
	req, err := r.prepare(t.Request)
	if err != nil {
		r.metrics.Record(t.Name, 0, 0, err)
		return err
	}

	start := time.Now()
	var n int64
	err = func() error {
		resp, err := r.client.Execute(ctx, req)
		if err != nil {
			return err
		}
		body, err := resp.Body(ctx)
		n = int64(len(body))
		if err != nil {
			return err
		}
		if resp.Status < 200 || resp.Status > 299 {
			return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.Status)
		}
		return nil
	}()

	if err != nil && !errors.Is(err, ErrUnexpectedStatus) && ctx.Err() != nil {
		r.metrics.RecordTimeout(t.Name)
		return err
	}
	r.metrics.Record(t.Name, time.Since(start), n, err)
	return err
}

// prepare returns req, or a copy carrying a fresh request ID
func (r *Runner) prepare(req *translate.Request) (*translate.Request, error) {
	if !r.requestIDs {
		return req, nil
	}
	headers, err := translate.BuildHeaders(req.Headers)
	if err != nil {
		return nil, err
	}
	headers.Set(RequestIDHeader, uuid.NewString())

	out := *req
	out.Headers = headers
	return &out, nil
}

// sleep waits d, or returns false early when ctx ends
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
