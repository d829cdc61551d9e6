package bench

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Thresholds are pass/fail criteria for a run. Zero fields are not checked.
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // fraction, 0.01 is 1%
	MinRPS     float64
}

// ThresholdResult is the verdict for one configured threshold
type ThresholdResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// HasThresholds reports whether any criterion is set
func (t *Thresholds) HasThresholds() bool {
	return *t != Thresholds{}
}

// ParseThresholds parses a comma separated list such as
// "p95<200ms, errors<0.1%, rps>=50". Latency and error criteria take an
// upper bound (< or <=), rps a lower bound (> or >=).
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := t.set(part); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (t *Thresholds) set(expr string) error {
	i := strings.IndexAny(expr, "<>")
	if i <= 0 {
		return fmt.Errorf("invalid threshold %q: want <metric><op><value>", expr)
	}
	metric := strings.ToLower(strings.TrimSpace(expr[:i]))
	upper := expr[i] == '<'
	value := strings.TrimSpace(strings.TrimPrefix(expr[i+1:], "="))
	if value == "" {
		return fmt.Errorf("invalid threshold %q: missing value", expr)
	}

	var latency *time.Duration
	switch metric {
	case "p50":
		latency = &t.P50
	case "p95":
		latency = &t.P95
	case "p99":
		latency = &t.P99
	case "max", "maxlatency":
		latency = &t.MaxLatency
	case "errors", "error", "errorrate":
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate %q", value)
		}
		if strings.HasSuffix(value, "%") {
			f /= 100
		}
		t.ErrorRate = f
		return nil
	case "rps", "rate":
		if upper {
			return fmt.Errorf("%s threshold must use > or >=", metric)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rps %q", value)
		}
		t.MinRPS = f
		return nil
	default:
		return fmt.Errorf("unknown threshold metric %q", metric)
	}

	if !upper {
		return fmt.Errorf("%s threshold must use < or <=", metric)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q", metric, value)
	}
	*latency = d
	return nil
}

// Evaluate checks s against every configured criterion, in a fixed order:
// p50, p95, p99, max latency, error rate, min RPS.
func (t Thresholds) Evaluate(s *Summary) []ThresholdResult {
	var out []ThresholdResult

	for _, c := range []struct {
		name          string
		limit, actual time.Duration
	}{
		{"p50", t.P50, s.P50},
		{"p95", t.P95, s.P95},
		{"p99", t.P99, s.P99},
		{"max latency", t.MaxLatency, s.Max},
	} {
		if c.limit <= 0 {
			continue
		}
		out = append(out, ThresholdResult{
			Name:     c.name,
			Passed:   c.actual <= c.limit,
			Expected: "< " + c.limit.String(),
			Actual:   c.actual.String(),
		})
	}

	if t.ErrorRate > 0 {
		out = append(out, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: trimFloat(t.ErrorRate*100) + "%",
			Actual:   trimFloat(s.ErrorRate*100) + "%",
		})
	}
	if t.MinRPS > 0 {
		out = append(out, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + trimFloat(t.MinRPS),
			Actual:   trimFloat(s.RPS),
		})
	}
	return out
}

// trimFloat prints whole numbers without decimals and the rest with two
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
