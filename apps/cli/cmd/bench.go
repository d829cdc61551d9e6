package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httpbridge/packages/bench"
	"github.com/abdul-hamid-achik/httpbridge/packages/core/config"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/history"
	"github.com/abdul-hamid-achik/httpbridge/packages/reqfile"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
	"github.com/abdul-hamid-achik/httpbridge/packages/transport"
)

const defaultBenchURL = "http://localhost:8000/"

var benchCmd = &cobra.Command{
	Use:   "bench [url]",
	Short: "Benchmark a server through the sync or async transport",
	Long: `Send load at a URL and report throughput, latency percentiles and
errors by kind.

By default 1000 requests are sent one after another. --rate switches to a
constant request rate for --duration, --vus to virtual users with think
time.

Examples:
  # Classic client against "httpbridge serve"
  httpbridge bench

  # 10k requests, 50 at a time, through the shared async client
  httpbridge bench http://localhost:8000/ -n 10000 -c 50 --async

  # Constant rate with thresholds for CI
  httpbridge bench https://api.example.com/health --rate 200 --duration 1m --threshold "p95<200ms,errors<0.1%"

  # Weighted mix of request documents
  httpbridge bench -f list.yaml -f create.yaml --vus 20 --duration 2m --think-time 500ms

  # Keep the result
  httpbridge bench --save && httpbridge history list`,
	Args: cobra.MaximumNArgs(1),
	RunE: benchCommand,
}

var (
	benchRequestsFlag    int
	benchConcurrencyFlag int
	benchRateFlag        float64
	benchDurationFlag    time.Duration
	benchVUsFlag         int
	benchMaxVUsFlag      int
	benchThinkTimeFlag   time.Duration
	benchRampUpFlag      time.Duration
	benchThresholdFlag   string
	benchAsyncFlag       bool
	benchStreamFlag      bool
	benchMethodFlag      string
	benchHeaderFlags     []string
	benchDataFlag        string
	benchFileFlags       []string
	benchRequestIDsFlag  bool
	benchJSONFlag        bool
	benchNoProgressFlag  bool
	benchVerboseFlag     bool
	benchSaveFlag        bool
	benchHistoryDBFlag   string
	benchMetricsAddrFlag string
)

func init() {
	benchCmd.Flags().IntVarP(&benchRequestsFlag, "requests", "n", 1000, "Total requests (count mode)")
	benchCmd.Flags().IntVarP(&benchConcurrencyFlag, "concurrency", "c", 1, "Concurrent workers (count mode)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", 0, "Constant requests per second for --duration")
	benchCmd.Flags().DurationVar(&benchDurationFlag, "duration", 30*time.Second, "Run length for rate and VU modes")
	benchCmd.Flags().IntVarP(&benchVUsFlag, "vus", "u", 0, "Virtual users for --duration")
	benchCmd.Flags().IntVar(&benchMaxVUsFlag, "max-vus", 100, "Maximum requests in flight")
	benchCmd.Flags().DurationVarP(&benchThinkTimeFlag, "think-time", "t", 0, "Pause between requests per virtual user")
	benchCmd.Flags().DurationVar(&benchRampUpFlag, "ramp-up", 0, "Time to reach the target rate or VU count")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g. \"p95<200ms,errors<0.1%\")")
	benchCmd.Flags().BoolVar(&benchAsyncFlag, "async", false, "Use the async transport over the shared client")
	benchCmd.Flags().BoolVar(&benchStreamFlag, "stream", false, "Request streamed bodies and drain them")
	benchCmd.Flags().StringVarP(&benchMethodFlag, "request", "X", http.MethodGet, "HTTP method for the URL target")
	benchCmd.Flags().StringArrayVarP(&benchHeaderFlags, "header", "H", nil, "Header line \"Name: value\" (repeatable)")
	benchCmd.Flags().StringVarP(&benchDataFlag, "data", "d", "", "Request body; @path reads a file")
	benchCmd.Flags().StringArrayVarP(&benchFileFlags, "file", "f", nil, "Request document to add as a target (repeatable)")
	benchCmd.Flags().BoolVar(&benchRequestIDsFlag, "request-ids", false, "Tag each request with a unique "+bench.RequestIDHeader)
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Print the summary as JSON on stdout")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable the live progress line")
	benchCmd.Flags().BoolVarP(&benchVerboseFlag, "verbose", "v", false, "Show the per-target breakdown")
	benchCmd.Flags().BoolVar(&benchSaveFlag, "save", false, "Store the result in the history database")
	benchCmd.Flags().StringVar(&benchHistoryDBFlag, "history-db", "", "History database path (default from config)")
	benchCmd.Flags().StringVar(&benchMetricsAddrFlag, "metrics-addr", "", "Expose transport metrics on this address while running")
	addVarFlags(benchCmd)
}

func benchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	benchCfg, err := buildBenchConfig(cmd)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	targets, err := buildBenchTargets(cmd, args, cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	metricsAddr := benchMetricsAddrFlag
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		m = metrics.New()
		srv := metrics.NewServer(m, metrics.WithAddr(metricsAddr))
		if err := srv.Start(); err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("metrics server: %w", err))
		}
		defer srv.Shutdown(context.Background())
		fmt.Fprintf(cmd.ErrOrStderr(), "metrics on http://%s/metrics\n", srv.Addr())
	}

	async := cfg.GetAsync()
	if cmd.Flags().Changed("async") {
		async = benchAsyncFlag
	}
	client, transportName, closeClient, err := benchClient(async, cfg, m)
	if err != nil {
		return err
	}
	defer closeClient()

	// In JSON mode the human-readable output moves to stderr so stdout
	// carries only the document.
	textOut := cmd.OutOrStdout()
	if benchJSONFlag {
		textOut = cmd.ErrOrStderr()
	}
	reporter := bench.NewReporter(
		bench.WithWriter(textOut),
		bench.WithNoColor(cfg.GetNoColor()),
		bench.WithNoProgress(benchNoProgressFlag),
		bench.WithVerbose(benchVerboseFlag || cfg.GetVerbose()),
	)

	runner := bench.NewRunner(benchCfg, client,
		bench.WithReporter(reporter),
		bench.WithVersion(version),
		bench.WithTransportName(transportName),
		bench.WithRequestIDs(benchRequestIDsFlag),
	)
	for _, t := range targets {
		runner.AddTarget(t)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt, stopping gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := runner.Run(ctx)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if benchJSONFlag {
		out := bench.NewReporter(bench.WithWriter(cmd.OutOrStdout()))
		if err := out.JSONSummary(result.Summary, result.Thresholds); err != nil {
			return err
		}
	}

	if benchSaveFlag {
		if err := saveBenchRun(cmd, cfg, benchLabel(targets), transportName, benchCfg, result); err != nil {
			return err
		}
	}

	if result.HasThresholdFailures() {
		return withExitCode(ExitFailure, fmt.Errorf("thresholds failed"))
	}
	return nil
}

// buildBenchConfig picks the mode from the flags the user actually set:
// --vus wins over --rate, and neither means count mode.
func buildBenchConfig(cmd *cobra.Command) (*bench.Config, error) {
	cfg := bench.DefaultConfig()
	flags := cmd.Flags()

	cfg.Requests = benchRequestsFlag
	cfg.VUs = benchConcurrencyFlag
	cfg.Duration = benchDurationFlag
	cfg.MaxVUs = benchMaxVUsFlag
	cfg.ThinkTime = benchThinkTimeFlag
	cfg.RampUp = benchRampUpFlag

	switch {
	case flags.Changed("vus"):
		cfg.Mode = bench.VUMode
		cfg.VUs = benchVUsFlag
	case flags.Changed("rate"):
		cfg.Mode = bench.RateMode
		cfg.Rate = benchRateFlag
	default:
		cfg.Mode = bench.CountMode
		if cfg.VUs > cfg.MaxVUs {
			cfg.MaxVUs = cfg.VUs
		}
	}

	if benchThresholdFlag != "" {
		t, err := bench.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold: %w", err)
		}
		cfg.Thresholds = t
	}

	return cfg, cfg.Validate()
}

// buildBenchTargets returns one target per request document plus one for
// the URL argument. With neither, the URL defaults to the local echo server.
func buildBenchTargets(cmd *cobra.Command, args []string, cfg *config.Config) ([]*bench.Target, error) {
	stream := cfg.GetStream()
	if cmd.Flags().Changed("stream") {
		stream = benchStreamFlag
	}

	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}

	headerLines := slices.Clone(benchHeaderFlags)
	for i := range headerLines {
		if err := expandAll(resolver, &headerLines[i]); err != nil {
			return nil, err
		}
	}

	var targets []*bench.Target
	for _, path := range benchFileFlags {
		req, err := reqfile.LoadRequest(path, reqfile.WithExpander(resolver))
		if err != nil {
			return nil, err
		}
		if err := decorateBenchRequest(req, cfg, headerLines, stream); err != nil {
			return nil, err
		}
		targets = append(targets, &bench.Target{Request: req, Weight: 1})
	}

	if len(args) > 0 || len(targets) == 0 {
		url := defaultBenchURL
		if len(args) > 0 {
			url = args[0]
		}
		if err := expandAll(resolver, &url); err != nil {
			return nil, err
		}
		req := &translate.Request{
			Method: strings.ToUpper(benchMethodFlag),
			URL:    url,
		}
		if benchDataFlag != "" {
			body, err := readData(benchDataFlag, cmd.InOrStdin())
			if err != nil {
				return nil, err
			}
			text := string(body)
			if err := expandAll(resolver, &text); err != nil {
				return nil, err
			}
			req.Content = []byte(text)
		}
		if err := decorateBenchRequest(req, cfg, headerLines, stream); err != nil {
			return nil, err
		}
		targets = append(targets, &bench.Target{Request: req, Weight: 1})
	}

	return targets, nil
}

func decorateBenchRequest(req *translate.Request, cfg *config.Config, headerLines []string, stream bool) error {
	headers, err := mergeHeaders(req.Headers, cfg.Headers, headerLines)
	if err != nil {
		return err
	}
	req.Headers = headers

	if stream {
		ext := req.Extensions.Clone()
		if ext == nil {
			ext = extensions.Extensions{}
		}
		ext[extensions.KeyStream] = extensions.BoolValue(true)
		req.Extensions = ext
	}
	return nil
}

func benchClient(async bool, cfg *config.Config, m *metrics.Metrics) (bench.Client, string, func(), error) {
	opts := []transport.Option{
		transport.WithConfig(cfg.ClientConfig()),
		transport.WithMetrics(m),
	}

	if async {
		t, err := transport.NewAsync(opts...)
		if err != nil {
			return nil, "", nil, withExitCode(ExitConfigError, err)
		}
		return bench.AsyncClient{T: t}, "async", func() { _ = t.Close() }, nil
	}

	t, err := transport.NewSync(opts...)
	if err != nil {
		return nil, "", nil, withExitCode(ExitConfigError, err)
	}
	return bench.SyncClient{T: t}, "sync", func() { _ = t.Close() }, nil
}

func benchLabel(targets []*bench.Target) string {
	if len(targets) == 1 {
		return targets[0].Request.URL
	}
	urls := make([]string, 0, len(targets))
	for _, t := range targets {
		urls = append(urls, t.Request.URL)
	}
	return strings.Join(urls, ", ")
}

func saveBenchRun(cmd *cobra.Command, cfg *config.Config, target, transportName string, benchCfg *bench.Config, res *bench.Result) error {
	dsn := benchHistoryDBFlag
	if dsn == "" {
		dsn = cfg.HistoryDB
	}
	if dsn == "" {
		dsn = config.DefaultHistoryDB()
	}

	store, err := history.Open(dsn)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	run := history.FromResult(target, transportName, benchCfg, res)
	if err := store.Save(context.Background(), run); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s\n", shortID(run.ID))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
