package bench

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
)

// Latencies are recorded in microseconds between 1µs and one minute with
// three significant digits.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// ErrUnexpectedStatus marks a completed exchange with a non-2xx status
var ErrUnexpectedStatus = errors.New("unexpected status")

// outcome counts requests by result
type outcome struct {
	total, success, failed atomic.Int64
}

func (o *outcome) add(err error) {
	o.total.Add(1)
	if err != nil {
		o.failed.Add(1)
	} else {
		o.success.Add(1)
	}
}

// latencies is a histogram safe for concurrent recording
type latencies struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

func newLatencies() *latencies {
	return &latencies{h: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
}

func (l *latencies) record(d time.Duration) {
	v := min(max(d.Microseconds(), minLatencyUs), maxLatencyUs)
	l.mu.Lock()
	_ = l.h.RecordValue(v)
	l.mu.Unlock()
}

// view reads the histogram under its lock
func (l *latencies) view(fn func(h *hdrhistogram.Histogram)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.h)
}

func us(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return us(h.ValueAtQuantile(q))
}

type targetStats struct {
	outcome
	lat *latencies
}

// Metrics aggregates the outcome of every request in a run. Recording is
// safe from many goroutines.
type Metrics struct {
	outcome
	timeouts  atomic.Int64
	bytesRead atomic.Int64
	activeVUs atomic.Int32
	lat       *latencies

	mu         sync.RWMutex
	targets    map[string]*targetStats
	errorKinds map[string]int64
	series     []TimePoint
	lastPoint  time.Time
	startTime  time.Time
	endTime    time.Time
}

// TimePoint is one sample of the progress time series
type TimePoint struct {
	Timestamp time.Time
	Requests  int64
	Errors    int64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	ActiveVUs int32
	RPS       float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		lat:        newLatencies(),
		targets:    make(map[string]*targetStats),
		errorKinds: make(map[string]int64),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.lastPoint = m.startTime
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record counts one finished exchange against target name (which may be
// empty). n is the number of body bytes received and err the failure, if
// any.
func (m *Metrics) Record(name string, d time.Duration, n int64, err error) {
	m.add(err)
	m.bytesRead.Add(n)
	m.lat.record(d)

	if err != nil {
		key := errorKey(err)
		m.mu.Lock()
		m.errorKinds[key]++
		m.mu.Unlock()
	}
	if name != "" {
		ts := m.target(name)
		ts.add(err)
		ts.lat.record(d)
	}
}

// RecordTimeout counts a request cut off by the end of the run. It is a
// failure with no latency sample.
func (m *Metrics) RecordTimeout(name string) {
	m.add(errCutOff)
	m.timeouts.Add(1)
	if name != "" {
		m.target(name).add(errCutOff)
	}
}

var errCutOff = errors.New("cut off")

func (m *Metrics) target(name string) *targetStats {
	m.mu.RLock()
	ts, ok := m.targets[name]
	m.mu.RUnlock()
	if ok {
		return ts
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ts, ok = m.targets[name]; !ok {
		ts = &targetStats{lat: newLatencies()}
		m.targets[name] = ts
	}
	return ts
}

// errorKey is the bucket an error is counted under: the transport error
// kind, "status" for non-2xx responses, or "other".
func errorKey(err error) string {
	if kind, ok := httperr.KindOf(err); ok {
		return kind.String()
	}
	if errors.Is(err, ErrUnexpectedStatus) {
		return "status"
	}
	return "other"
}

func (m *Metrics) IncrementActiveVUs() { m.activeVUs.Add(1) }
func (m *Metrics) DecrementActiveVUs() { m.activeVUs.Add(-1) }

// Snapshot samples the run for the time series. RPS is measured since the
// previous point added with AddTimePoint.
func (m *Metrics) Snapshot() TimePoint {
	now := time.Now()
	p := TimePoint{
		Timestamp: now,
		Requests:  m.total.Load(),
		Errors:    m.failed.Load(),
		ActiveVUs: m.activeVUs.Load(),
	}
	m.lat.view(func(h *hdrhistogram.Histogram) {
		p.P50, p.P95, p.P99 = quantile(h, 50), quantile(h, 95), quantile(h, 99)
	})

	m.mu.RLock()
	defer m.mu.RUnlock()
	var prev int64
	if n := len(m.series); n > 0 {
		prev = m.series[n-1].Requests
	}
	secs := now.Sub(m.lastPoint).Seconds()
	if secs <= 0 {
		secs = 1
	}
	p.RPS = float64(p.Requests-prev) / secs
	return p
}

// AddTimePoint appends p to the series
func (m *Metrics) AddTimePoint(p TimePoint) {
	m.mu.Lock()
	m.series = append(m.series, p)
	m.lastPoint = p.Timestamp
	m.mu.Unlock()
}

// Summary is the final result of a run
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	BytesRead     int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	// ErrorsByKind counts failures by bucket, see ErrorKinds
	ErrorsByKind map[string]int64

	TargetBreakdown map[string]*TargetSummary

	TimeSeries []TimePoint
}

type TargetSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Mean    time.Duration
}

// ErrorKinds returns the error buckets, most frequent first
func (s *Summary) ErrorKinds() []string {
	return slices.SortedFunc(maps.Keys(s.ErrorsByKind), func(a, b string) int {
		return cmp.Or(cmp.Compare(s.ErrorsByKind[b], s.ErrorsByKind[a]), cmp.Compare(a, b))
	})
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func perSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// elapsed is the run length so far, or the full length once stopped
func (m *Metrics) elapsed() time.Duration {
	if m.endTime.IsZero() {
		return time.Since(m.startTime)
	}
	return m.endTime.Sub(m.startTime)
}

// GetSummary computes the final statistics
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, success, failed := m.total.Load(), m.success.Load(), m.failed.Load()
	s := &Summary{
		Duration:        m.elapsed(),
		TotalRequests:   total,
		SuccessCount:    success,
		ErrorCount:      failed,
		TimeoutCount:    m.timeouts.Load(),
		BytesRead:       m.bytesRead.Load(),
		SuccessRate:     ratio(success, total),
		ErrorRate:       ratio(failed, total),
		ErrorsByKind:    maps.Clone(m.errorKinds),
		TargetBreakdown: make(map[string]*TargetSummary, len(m.targets)),
		TimeSeries:      slices.Clone(m.series),
	}
	s.RPS = perSecond(total, s.Duration)

	m.lat.view(func(h *hdrhistogram.Histogram) {
		s.P50, s.P95, s.P99 = quantile(h, 50), quantile(h, 95), quantile(h, 99)
		s.Min, s.Max = us(h.Min()), us(h.Max())
		s.Mean, s.StdDev = us(int64(h.Mean())), us(int64(h.StdDev()))
	})

	for name, ts := range m.targets {
		t := &TargetSummary{
			Name:    name,
			Total:   ts.total.Load(),
			Success: ts.success.Load(),
			Errors:  ts.failed.Load(),
		}
		ts.lat.view(func(h *hdrhistogram.Histogram) {
			t.P50, t.P95, t.P99 = quantile(h, 50), quantile(h, 95), quantile(h, 99)
			t.Mean = us(int64(h.Mean()))
		})
		s.TargetBreakdown[name] = t
	}
	return s
}

// CurrentStats is the live view shown while a run is in progress
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	ActiveVUs int32
	ErrorRate float64
}

func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	elapsed := time.Since(m.startTime)
	m.mu.RUnlock()

	c := CurrentStats{
		Elapsed:   elapsed,
		Total:     m.total.Load(),
		Success:   m.success.Load(),
		Errors:    m.failed.Load(),
		ActiveVUs: m.activeVUs.Load(),
	}
	c.RPS = perSecond(c.Total, elapsed)
	c.ErrorRate = ratio(c.Errors, c.Total)
	m.lat.view(func(h *hdrhistogram.Histogram) {
		c.P50, c.P95, c.P99 = quantile(h, 50), quantile(h, 95), quantile(h, 99)
		c.Max = us(h.Max())
	})
	return c
}

// EvaluateThresholds checks t against the current summary
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	return t.Evaluate(m.GetSummary())
}
