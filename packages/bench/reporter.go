package bench

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	progressLines = 4
	barWidth      = 30
	ruleWidth     = 40
)

// Reporter renders a run for humans: a header, a live progress block that
// redraws in place, and the final summary.
type Reporter struct {
	w          io.Writer
	noColor    bool
	noProgress bool
	verbose    bool

	ok, bad, warn, accent, strong *color.Color
}

type ReporterOption func(*Reporter)

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) { r.w = w }
}

func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) { r.noColor = noColor }
}

// WithNoProgress turns off the live progress block. Use it when output is
// not a terminal.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) { r.noProgress = noProgress }
}

// WithVerbose adds the per-target breakdown to the summary
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) { r.verbose = verbose }
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{w: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	paint := func(a color.Attribute) *color.Color {
		c := color.New(a)
		if r.noColor {
			c.DisableColor()
		}
		return c
	}
	r.ok = paint(color.FgGreen)
	r.bad = paint(color.FgRed)
	r.warn = paint(color.FgYellow)
	r.accent = paint(color.FgCyan)
	r.strong = paint(color.Bold)
	return r
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// section prints a blank line and a bold title
func (r *Reporter) section(title string) {
	r.printf("\n")
	r.strong.Fprintln(r.w, title)
}

// count prints n in c, or plain when c is nil
func (r *Reporter) count(n int64, c *color.Color) {
	if c == nil {
		r.printf("%s", formatNumber(n))
		return
	}
	c.Fprint(r.w, formatNumber(n))
}

// errColor is the color for an error counter
func (r *Reporter) errColor(n int64) *color.Color {
	if n > 0 {
		return r.bad
	}
	return nil
}

// Header prints what is about to run
func (r *Reporter) Header(version, target string, config *Config, transport string) {
	r.printf("\n")
	r.strong.Fprintf(r.w, "httpbridge bench %s\n\n", version)
	r.accent.Fprintf(r.w, "Target: %s\n", target)

	parts := []string{"Mode: " + config.Mode.String(), "Transport: " + transport}
	switch config.Mode {
	case CountMode:
		parts = append(parts,
			"Requests: "+formatNumber(int64(config.Requests)),
			fmt.Sprintf("Workers: %d", config.VUs))
	case RateMode:
		parts = append(parts,
			fmt.Sprintf("Rate: %.0f req/s", config.Rate),
			"Duration: "+config.Duration.String())
	case VUMode:
		parts = append(parts,
			fmt.Sprintf("VUs: %d", config.VUs),
			"Duration: "+config.Duration.String())
	}
	r.printf("%s\n\n", strings.Join(parts, " | "))
}

// Progress redraws the live block. total is the planned request count in
// CountMode and zero otherwise, in which case progress is measured against
// duration.
func (r *Reporter) Progress(stats CurrentStats, duration time.Duration, total int) {
	if r.noProgress {
		return
	}

	done, label := 0.0, ""
	if total > 0 {
		done = float64(stats.Total) / float64(total)
		label = formatNumber(stats.Total) + " / " + formatNumber(int64(total))
	} else if duration > 0 {
		done = float64(stats.Elapsed) / float64(duration)
		label = formatDuration(stats.Elapsed) + " / " + formatDuration(duration)
	}
	filled := int(min(done, 1) * barWidth)

	r.printf("\r\033[K")
	r.printf("Progress %s%s %s\n", strings.Repeat("━", filled), strings.Repeat("─", barWidth-filled), label)

	r.printf("Requests: ")
	r.count(stats.Total, r.strong)
	r.printf(" total | ")
	r.count(stats.Success, r.ok)
	r.printf(" success | ")
	r.count(stats.Errors, r.errColor(stats.Errors))
	r.printf(" errors (%.2f%%)\n", stats.ErrorRate*100)

	r.printf("Rate: ")
	r.accent.Fprintf(r.w, "%.1f", stats.RPS)
	r.printf(" req/s | Active VUs: %d\n", stats.ActiveVUs)

	r.printf("Latency: p50: %s | p95: %s | p99: %s | max: %s\n",
		formatLatency(stats.P50), formatLatency(stats.P95), formatLatency(stats.P99), formatLatency(stats.Max))

	// back to the top of the block for the next redraw
	r.printf("\033[%dA", progressLines)
}

// ClearProgress erases the live block
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	r.printf("\033[%dB", progressLines)
	for range progressLines {
		r.printf("\r\033[K\033[A")
	}
	r.printf("\r\033[K")
}

// Summary prints the final report. Threshold verdicts are listed when
// given; the per-target breakdown only in verbose mode.
func (r *Reporter) Summary(s *Summary, thresholds []ThresholdResult) {
	r.section("BENCH SUMMARY")
	r.printf("%s\n", strings.Repeat("─", ruleWidth))

	r.printf("%-12s%s\n", "Duration:", formatDuration(s.Duration))
	r.printf("%-12s", "Total:")
	r.count(s.TotalRequests, r.strong)
	r.printf(" requests (%.1f req/s)\n", s.RPS)
	r.printf("%-12s", "Success:")
	r.count(s.SuccessCount, r.ok)
	r.printf(" (%.1f%%)\n", s.SuccessRate*100)
	r.printf("%-12s", "Failed:")
	r.count(s.ErrorCount, r.errColor(s.ErrorCount))
	r.printf(" (%.1f%%)\n", s.ErrorRate*100)
	if s.TimeoutCount > 0 {
		r.printf("%-12s", "Cut off:")
		r.count(s.TimeoutCount, r.warn)
		r.printf("\n")
	}
	r.printf("%-12s%s\n", "Received:", formatBytes(s.BytesRead))

	r.section("LATENCY (ms)")
	r.printf("  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(s.P50), formatLatencyMs(s.P95), formatLatencyMs(s.P99), formatLatencyMs(s.Max))
	r.printf("  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(s.Min), formatLatencyMs(s.Mean), formatLatencyMs(s.StdDev))

	if len(s.ErrorsByKind) > 0 {
		r.section("ERRORS")
		for _, kind := range s.ErrorKinds() {
			r.bad.Fprintf(r.w, "  %-22s", kind)
			r.printf(" %s\n", formatNumber(s.ErrorsByKind[kind]))
		}
	}

	if r.verbose && len(s.TargetBreakdown) > 0 {
		r.section("PER-TARGET BREAKDOWN")
		for _, name := range slices.Sorted(maps.Keys(s.TargetBreakdown)) {
			ts := s.TargetBreakdown[name]
			r.printf("  %s:\n", name)
			r.printf("    Total: %s | Success: %s | Errors: %s\n",
				formatNumber(ts.Total), formatNumber(ts.Success), formatNumber(ts.Errors))
			r.printf("    p50: %s | p95: %s | p99: %s\n",
				formatLatency(ts.P50), formatLatency(ts.P95), formatLatency(ts.P99))
		}
	}

	if len(thresholds) > 0 {
		r.thresholds(thresholds)
	}
	r.printf("\n")
}

func (r *Reporter) thresholds(results []ThresholdResult) {
	r.section("THRESHOLDS")
	failed := 0
	for _, tr := range results {
		mark, c := "✓", r.ok
		if !tr.Passed {
			mark, c = "✗", r.bad
			failed++
		}
		c.Fprintf(r.w, "  %s ", mark)
		r.printf("%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
	}

	r.printf("\n")
	if failed == 0 {
		r.ok.Fprintln(r.w, "All thresholds passed!")
		return
	}
	r.bad.Fprintf(r.w, "%d of %d thresholds failed!\n", failed, len(results))
}

// JSONSummary writes ToJSON(s, thresholds) as indented JSON
func (r *Reporter) JSONSummary(s *Summary, thresholds []ThresholdResult) error {
	return writeJSON(r.w, ToJSON(s, thresholds))
}
