package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httpbridge/packages/core/config"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
	"github.com/abdul-hamid-achik/httpbridge/packages/extensions"
	"github.com/abdul-hamid-achik/httpbridge/packages/reqfile"
	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
	"github.com/abdul-hamid-achik/httpbridge/packages/transport"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Send one request and print the response",
	Long: `Send a single HTTP request through the sync or async transport.

With --stream the body is printed chunk by chunk as it arrives (async
transport) or after it has been read in full (sync transport).

Examples:
  httpbridge fetch https://example.com
  httpbridge fetch https://api.example.com/items -X POST -H "Content-Type: application/json" -d '{"name":"x"}'
  httpbridge fetch https://example.com/big --stream --async
  httpbridge fetch -f request.yaml --ext timeout=5
  httpbridge fetch https://example.com -i --metrics-json -`,
	Args: cobra.MaximumNArgs(1),
	RunE: fetchCommand,
}

var (
	fetchMethodFlag      string
	fetchHeaderFlags     []string
	fetchDataFlag        string
	fetchExtFlags        []string
	fetchStreamFlag      bool
	fetchAsyncFlag       bool
	fetchFileFlag        string
	fetchIncludeFlag     bool
	fetchFailFlag        bool
	fetchOutputFlag      string
	fetchMetricsJSONFlag string
	fetchVerboseFlag     bool
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchMethodFlag, "request", "X", "", "HTTP method (default GET, or the request file's method)")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaderFlags, "header", "H", nil, "Header line \"Name: value\" (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchDataFlag, "data", "d", "", "Request body; @path reads a file, @- reads stdin")
	fetchCmd.Flags().StringArrayVar(&fetchExtFlags, "ext", nil, "Extension key=value; JSON scalars are typed (repeatable)")
	fetchCmd.Flags().BoolVar(&fetchStreamFlag, "stream", false, "Request a streamed response body")
	fetchCmd.Flags().BoolVar(&fetchAsyncFlag, "async", false, "Use the async transport over the shared client")
	fetchCmd.Flags().StringVarP(&fetchFileFlag, "file", "f", "", "Request document (JSON or YAML)")
	fetchCmd.Flags().BoolVarP(&fetchIncludeFlag, "include", "i", false, "Print the status line and headers")
	fetchCmd.Flags().BoolVar(&fetchFailFlag, "fail", false, "Exit non-zero on HTTP status >= 400")
	fetchCmd.Flags().StringVarP(&fetchOutputFlag, "output", "o", "", "Write the body to a file instead of stdout")
	fetchCmd.Flags().StringVar(&fetchMetricsJSONFlag, "metrics-json", "", "Write transport metrics as JSON to a file (- for stderr)")
	fetchCmd.Flags().BoolVarP(&fetchVerboseFlag, "verbose", "v", false, "Print timing and chunk information to stderr")
	addVarFlags(fetchCmd)
}

func fetchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	req, err := buildFetchRequest(cmd, args, cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if fetchMetricsJSONFlag != "" {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	async := cfg.GetAsync()
	if cmd.Flags().Changed("async") {
		async = fetchAsyncFlag
	}

	start := time.Now()
	resp, err := send(ctx, req, async, cfg, m)
	if err != nil {
		return err
	}
	defer resp.Close()

	stderr := cmd.ErrOrStderr()
	if fetchIncludeFlag {
		writeHead(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	if fetchOutputFlag != "" {
		f, err := os.Create(fetchOutputFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	chunks, n, err := writeBody(ctx, out, resp)
	if err != nil {
		return err
	}

	if fetchVerboseFlag {
		fmt.Fprintf(stderr, "%s %d bytes in %d chunk(s), %s\n",
			color.CyanString("*"), n, chunks, time.Since(start).Round(time.Microsecond))
	}

	if m != nil {
		if err := exportFetchMetrics(m, stderr); err != nil {
			return err
		}
	}

	if fetchFailFlag && resp.Status >= 400 {
		return withExitCode(ExitFailure, fmt.Errorf("HTTP %d %s", resp.Status, http.StatusText(resp.Status)))
	}
	return nil
}

// buildFetchRequest assembles the request from the request document, the
// positional URL and the flags, in that order of precedence (lowest first)
func buildFetchRequest(cmd *cobra.Command, args []string, cfg *config.Config) (*translate.Request, error) {
	req := &translate.Request{Method: http.MethodGet}

	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}

	if fetchFileFlag != "" {
		fileReq, err := reqfile.LoadRequest(fetchFileFlag, reqfile.WithExpander(resolver))
		if err != nil {
			return nil, err
		}
		req = fileReq
	}

	if len(args) > 0 {
		url := args[0]
		if err := expandAll(resolver, &url); err != nil {
			return nil, err
		}
		req.URL = url
	}
	if req.URL == "" {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("a URL or --file is required"))
	}

	if fetchMethodFlag != "" {
		req.Method = strings.ToUpper(fetchMethodFlag)
	}

	if fetchDataFlag != "" {
		body, err := readData(fetchDataFlag, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		text := string(body)
		if err := expandAll(resolver, &text); err != nil {
			return nil, err
		}
		req.Content = []byte(text)
		if !cmd.Flags().Changed("request") && fetchFileFlag == "" {
			req.Method = http.MethodPost
		}
	}

	if len(fetchHeaderFlags) > 0 || len(cfg.Headers) > 0 {
		lines := slices.Clone(fetchHeaderFlags)
		for i := range lines {
			if err := expandAll(resolver, &lines[i]); err != nil {
				return nil, err
			}
		}
		headers, err := mergeHeaders(req.Headers, cfg.Headers, lines)
		if err != nil {
			return nil, err
		}
		req.Headers = headers
	}

	ext, err := buildExtensions(req.Extensions, fetchExtFlags)
	if err != nil {
		return nil, err
	}
	stream := cfg.GetStream()
	if cmd.Flags().Changed("stream") {
		stream = fetchStreamFlag
	}
	if stream {
		ext[extensions.KeyStream] = extensions.BoolValue(true)
	}
	if len(ext) > 0 {
		req.Extensions = ext
	}

	return req, nil
}

// mergeHeaders layers config defaults and -H lines over the document's
// headers. Defaults only fill gaps; -H lines are appended.
func mergeHeaders(base any, defaults map[string]string, lines []string) (http.Header, error) {
	headers, err := translate.BuildHeaders(base)
	if err != nil {
		return nil, err
	}
	for name, value := range defaults {
		if headers.Get(name) == "" {
			headers.Set(name, value)
		}
	}
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid header %q (want \"Name: value\")", line))
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return headers, nil
}

func buildExtensions(base extensions.Extensions, assignments []string) (extensions.Extensions, error) {
	ext := base.Clone()
	if ext == nil {
		ext = extensions.Extensions{}
	}
	for _, a := range assignments {
		key, value, err := extensions.ParseAssignment(a)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		ext[key] = value
	}
	return ext, nil
}

func readData(spec string, stdin io.Reader) ([]byte, error) {
	path, ok := strings.CutPrefix(spec, "@")
	if !ok {
		return []byte(spec), nil
	}
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read body file: %w", err)
	}
	return data, nil
}

// send dispatches req through the chosen transport and waits for the head
func send(ctx context.Context, req *translate.Request, async bool, cfg *config.Config, m *metrics.Metrics) (*translate.Response, error) {
	opts := []transport.Option{
		transport.WithConfig(cfg.ClientConfig()),
		transport.WithMetrics(m),
	}

	if !async {
		t, err := transport.NewSync(opts...)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		defer t.Close()
		return t.HandleRequest(ctx, req)
	}

	t, err := transport.NewAsync(opts...)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	defer t.Close()

	pending, err := t.HandleRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}

func writeHead(w io.Writer, resp *translate.Response) {
	status := fmt.Sprintf("HTTP %d %s", resp.Status, http.StatusText(resp.Status))
	switch {
	case resp.Status >= 400:
		color.New(color.FgRed, color.Bold).Fprintln(w, status)
	case resp.Status >= 300:
		color.New(color.FgYellow, color.Bold).Fprintln(w, status)
	default:
		color.New(color.FgGreen, color.Bold).Fprintln(w, status)
	}
	for _, h := range resp.Headers {
		fmt.Fprintf(w, "%s: %s\n", color.CyanString(h.Name), h.Value)
	}
	fmt.Fprintln(w)
}

// writeBody copies the body to w as it arrives and returns the number of
// chunks and bytes written
func writeBody(ctx context.Context, w io.Writer, resp *translate.Response) (int, int64, error) {
	if !resp.IsStream() {
		n, err := w.Write(resp.Content)
		return 1, int64(n), err
	}

	var (
		chunks int
		total  int64
	)
	for {
		chunk, err := resp.Stream.Next(ctx)
		if err == io.EOF {
			return chunks, total, nil
		}
		if err != nil {
			return chunks, total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		chunks++
		if err != nil {
			return chunks, total, err
		}
	}
}

func exportFetchMetrics(m *metrics.Metrics, stderr io.Writer) error {
	opts := []metrics.JSONOption{}
	if fetchMetricsJSONFlag == "-" {
		opts = append(opts, metrics.WithJSONWriter(stderr))
	} else {
		opts = append(opts, metrics.WithJSONFile(fetchMetricsJSONFlag))
	}
	return metrics.NewJSONExporter(opts...).Export(m)
}
