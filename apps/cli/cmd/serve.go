package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httpbridge/packages/echo"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
)

var (
	serveAddrFlag    string
	serveDelayFlag   time.Duration
	serveVerboseFlag bool
	serveMetricsFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the benchmark echo server",
	Long: `Start a small HTTP server to benchmark against.

Routes:
  GET /                   "Hello, World!"
  ANY /echo               the request as JSON
  GET /stream             chunked body (?chunks=10&size=1024&interval=10ms)
  ANY /status/{code}      empty response with that status
  GET /redirect/{n}       n redirects, then /
  GET /metrics            served request counters (with --metrics)

Examples:
  httpbridge serve
  httpbridge serve --addr 127.0.0.1:9000 --delay 20ms
  httpbridge serve --metrics --verbose`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddrFlag, "addr", "a", echo.DefaultAddr, "Listen address")
	serveCmd.Flags().DurationVarP(&serveDelayFlag, "delay", "d", 0, "Delay added to every response (e.g. 100ms)")
	serveCmd.Flags().BoolVarP(&serveVerboseFlag, "verbose", "v", false, "Log every request")
	serveCmd.Flags().BoolVar(&serveMetricsFlag, "metrics", false, "Expose Prometheus metrics at /metrics")
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(); err != nil {
		return err
	}
	if serveDelayFlag < 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("delay cannot be negative"))
	}

	opts := []echo.Option{
		echo.WithAddr(serveAddrFlag),
		echo.WithDelay(serveDelayFlag),
		echo.WithVerbose(serveVerboseFlag),
	}
	if serveMetricsFlag {
		opts = append(opts, echo.WithMetrics(metrics.New(), true))
	}
	server := echo.NewServer(opts...)

	if err := server.Listen(); err != nil {
		return withExitCode(ExitNetworkError, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Serving on"), server.URL())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down echo server...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return server.StartWithContext(ctx)
}
