package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// MetricFamily is a gathered family flattened for JSON
type MetricFamily struct {
	Name    string   `json:"name"`
	Help    string   `json:"help,omitempty"`
	Type    string   `json:"type"`
	Samples []Sample `json:"samples"`
}

// Sample is one labelled series. Counters and gauges fill Value,
// histograms Count and Sum.
type Sample struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Count  uint64            `json:"count,omitempty"`
	Sum    float64           `json:"sum,omitempty"`
}

// JSONMetricsOutput is the document Export writes
type JSONMetricsOutput struct {
	Metadata JSONMetadata    `json:"metadata"`
	Families []*MetricFamily `json:"families"`
}

type JSONMetadata struct {
	GeneratedAt string `json:"generated_at"`
	StartTime   string `json:"start_time"`
	Duration    string `json:"duration"`
}

// JSONExporter dumps a registry once, typically at exit. The document goes
// to a file, a writer, or both.
type JSONExporter struct {
	w       io.Writer
	path    string
	compact bool
	started time.Time
}

type JSONOption func(*JSONExporter)

func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) { j.w = w }
}

// WithJSONFile writes the document to path, replacing it
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) { j.path = path }
}

// WithJSONPretty controls indentation. On by default.
func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) { j.compact = !pretty }
}

func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{started: time.Now()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Export gathers m and writes the document to every configured sink
func (j *JSONExporter) Export(m *Metrics) error {
	families, err := m.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	now := time.Now()
	doc := JSONMetricsOutput{
		Metadata: JSONMetadata{
			GeneratedAt: now.Format(time.RFC3339),
			StartTime:   j.started.Format(time.RFC3339),
			Duration:    now.Sub(j.started).String(),
		},
		Families: families,
	}

	marshal := func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	if j.compact {
		marshal = json.Marshal
	}
	data, err := marshal(doc)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	data = append(data, '\n')

	if j.path != "" {
		if err := os.WriteFile(j.path, data, 0o644); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}
	if j.w != nil {
		if _, err := j.w.Write(data); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func convertFamilies(families []*dto.MetricFamily) []*MetricFamily {
	out := make([]*MetricFamily, len(families))
	for i, f := range families {
		mf := &MetricFamily{Name: f.GetName(), Help: f.GetHelp(), Type: f.GetType().String()}
		for _, m := range f.GetMetric() {
			mf.Samples = append(mf.Samples, convertMetric(m))
		}
		out[i] = mf
	}
	return out
}

func convertMetric(m *dto.Metric) Sample {
	var s Sample
	for _, l := range m.GetLabel() {
		if s.Labels == nil {
			s.Labels = make(map[string]string)
		}
		s.Labels[l.GetName()] = l.GetValue()
	}

	if c := m.GetCounter(); c != nil {
		s.Value = c.GetValue()
	} else if g := m.GetGauge(); g != nil {
		s.Value = g.GetValue()
	} else if h := m.GetHistogram(); h != nil {
		s.Count, s.Sum = h.GetSampleCount(), h.GetSampleSum()
	} else if u := m.GetUntyped(); u != nil {
		s.Value = u.GetValue()
	}
	return s
}

// Find returns the family called name, or nil
func Find(families []*MetricFamily, name string) *MetricFamily {
	i := slices.IndexFunc(families, func(f *MetricFamily) bool { return f.Name == name })
	if i < 0 {
		return nil
	}
	return families[i]
}
