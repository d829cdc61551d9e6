package bench

import (
	"encoding/json"
	"io"
)

// JSONSummary is the machine-readable form of a Summary. It is what
// --json prints and what the history store persists.
type JSONSummary struct {
	Duration   string                `json:"duration"`
	Requests   JSONRequests          `json:"requests"`
	Rates      JSONRates             `json:"rates"`
	LatencyMs  JSONLatency           `json:"latencyMs"`
	BytesRead  int64                 `json:"bytesRead"`
	Errors     map[string]int64      `json:"errors,omitempty"`
	Thresholds []ThresholdResult     `json:"thresholds,omitempty"`
	Targets    map[string]JSONTarget `json:"targets,omitempty"`
}

type JSONRequests struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
	Timeouts int64 `json:"timeouts"`
}

type JSONRates struct {
	RPS         float64 `json:"rps"`
	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`
}

// JSONLatency is in milliseconds
type JSONLatency struct {
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

type JSONTarget struct {
	Total   int64   `json:"total"`
	Success int64   `json:"success"`
	Errors  int64   `json:"errors"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Mean    float64 `json:"mean"`
}

// ToJSON converts s and its threshold verdicts to the JSON shape
func ToJSON(s *Summary, thresholds []ThresholdResult) JSONSummary {
	out := JSONSummary{
		Duration:   s.Duration.String(),
		BytesRead:  s.BytesRead,
		Thresholds: thresholds,
	}
	out.Requests = JSONRequests{s.TotalRequests, s.SuccessCount, s.ErrorCount, s.TimeoutCount}
	out.Rates = JSONRates{s.RPS, s.SuccessRate, s.ErrorRate}
	out.LatencyMs = JSONLatency{
		P50: ms(s.P50), P95: ms(s.P95), P99: ms(s.P99),
		Min: ms(s.Min), Max: ms(s.Max),
		Mean: ms(s.Mean), StdDev: ms(s.StdDev),
	}

	if len(s.ErrorsByKind) != 0 {
		out.Errors = s.ErrorsByKind
	}
	for name, ts := range s.TargetBreakdown {
		if out.Targets == nil {
			out.Targets = make(map[string]JSONTarget, len(s.TargetBreakdown))
		}
		out.Targets[name] = JSONTarget{
			Total: ts.Total, Success: ts.Success, Errors: ts.Errors,
			P50: ms(ts.P50), P95: ms(ts.P95), P99: ms(ts.P99), Mean: ms(ts.Mean),
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
