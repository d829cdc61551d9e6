package bench

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/httperr"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("a", 10*time.Millisecond, 100, nil)
	m.Record("a", 20*time.Millisecond, 50, nil)
	m.Record("b", 30*time.Millisecond, 0, errors.New("boom"))

	m.Stop()
	s := m.GetSummary()

	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.SuccessCount)
	assert.Equal(t, int64(1), s.ErrorCount)
	assert.Equal(t, int64(150), s.BytesRead)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 0.001)
}

func TestMetricsRecordTimeout(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.RecordTimeout("a")

	s := m.GetSummary()
	assert.Equal(t, int64(1), s.TotalRequests)
	assert.Equal(t, int64(1), s.TimeoutCount)
	assert.Equal(t, int64(1), s.ErrorCount)
	assert.Equal(t, int64(1), s.TargetBreakdown["a"].Errors)
}

func TestMetricsErrorsByKind(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("", time.Millisecond, 0, httperr.New(httperr.ConnectError, "refused"))
	m.Record("", time.Millisecond, 0, httperr.New(httperr.ConnectError, "refused"))
	m.Record("", time.Millisecond, 0, httperr.New(httperr.ReadTimeout, "slow"))
	m.Record("", time.Millisecond, 0, fmt.Errorf("%w: HTTP 503", ErrUnexpectedStatus))
	m.Record("", time.Millisecond, 0, errors.New("mystery"))

	s := m.GetSummary()
	assert.Equal(t, int64(2), s.ErrorsByKind[httperr.ConnectError.String()])
	assert.Equal(t, int64(1), s.ErrorsByKind[httperr.ReadTimeout.String()])
	assert.Equal(t, int64(1), s.ErrorsByKind["status"])
	assert.Equal(t, int64(1), s.ErrorsByKind["other"])
	assert.Equal(t, httperr.ConnectError.String(), s.ErrorKinds()[0])
}

func TestMetricsActiveVUs(t *testing.T) {
	m := NewMetrics()
	m.IncrementActiveVUs()
	m.IncrementActiveVUs()
	m.DecrementActiveVUs()

	assert.Equal(t, int32(1), m.GetCurrentStats().ActiveVUs)
}

func TestMetricsLatencyPercentiles(t *testing.T) {
	m := NewMetrics()
	m.Start()
	for i := 1; i <= 100; i++ {
		m.Record("", time.Duration(i)*time.Millisecond, 0, nil)
	}
	m.Stop()

	s := m.GetSummary()
	assert.InDelta(t, 50, s.P50.Milliseconds(), 2)
	assert.InDelta(t, 95, s.P95.Milliseconds(), 2)
	assert.InDelta(t, 1, s.Min.Milliseconds(), 1)
	assert.InDelta(t, 100, s.Max.Milliseconds(), 2)
}

func TestMetricsTargetBreakdown(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("get", 5*time.Millisecond, 0, nil)
	m.Record("get", 5*time.Millisecond, 0, nil)
	m.Record("post", 5*time.Millisecond, 0, errors.New("x"))

	s := m.GetSummary()
	require.Len(t, s.TargetBreakdown, 2)
	assert.Equal(t, int64(2), s.TargetBreakdown["get"].Success)
	assert.Equal(t, int64(1), s.TargetBreakdown["post"].Errors)
}

func TestMetricsEvaluateThresholds(t *testing.T) {
	m := NewMetrics()
	m.Start()
	for range 10 {
		m.Record("", 10*time.Millisecond, 0, nil)
	}
	m.Record("", 10*time.Millisecond, 0, errors.New("x"))
	m.Stop()

	results := m.EvaluateThresholds(Thresholds{
		P95:       time.Second,
		ErrorRate: 0.01,
	})
	require.Len(t, results, 2)

	assert.Equal(t, "p95", results[0].Name)
	assert.True(t, results[0].Passed)

	assert.Equal(t, "error rate", results[1].Name)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "1%", results[1].Expected)
}

func TestMetricsSnapshotAndTimeSeries(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("", time.Millisecond, 0, nil)

	point := m.Snapshot()
	assert.Equal(t, int64(1), point.Requests)
	m.AddTimePoint(point)

	m.Record("", time.Millisecond, 0, nil)
	m.AddTimePoint(m.Snapshot())

	s := m.GetSummary()
	require.Len(t, s.TimeSeries, 2)
	assert.Equal(t, int64(2), s.TimeSeries[1].Requests)
}
