package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/core/config"
	"github.com/abdul-hamid-achik/httpbridge/packages/diag"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	logLevelFlag string
	noColorFlag  bool
	proxyFlag    string
	insecureFlag bool
	timeoutFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "httpbridge",
	Short: "HTTP requests with buffered or streamed responses",
	Long: `httpbridge sends HTTP requests through a pooled client and hands the
response back either fully buffered or as a stream of chunks read in the
background. It also ships a benchmark client and a matching benchmark
server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with a code derived from the error
func Execute(v, bt string) {
	version = v
	buildTime = bt
	clientpool.Version = v

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HTTPBRIDGE_CONFIG", ""), "Path to config file (env: HTTPBRIDGE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("HTTPBRIDGE_NO_COLOR", false), "Disable colored output (env: HTTPBRIDGE_NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&proxyFlag, "proxy", getEnvString("HTTPBRIDGE_PROXY", ""), "Proxy URL for HTTP requests (env: HTTPBRIDGE_PROXY)")
	rootCmd.PersistentFlags().BoolVarP(&insecureFlag, "insecure", "k", false, "Disable SSL certificate validation")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", getEnvString("HTTPBRIDGE_TIMEOUT", ""), "Per-request timeout, e.g. 10s (env: HTTPBRIDGE_TIMEOUT)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings reads the config file and applies the global flags on top
func loadSettings() (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		if configFlag != "" {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
		}
		fileConfig = config.DefaultConfig()
	}

	overrides := &config.Config{
		Proxy:    proxyFlag,
		LogLevel: logLevelFlag,
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		overrides.NoColor = config.BoolPtr(true)
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag))
		}
		overrides.Timeout = int(d.Milliseconds())
	}

	cfg := fileConfig.Merge(overrides)
	setupOutput(cfg)
	return cfg, nil
}

// setupOutput configures colors and the diagnostic logger. HTTPBRIDGE_LOG
// wins over the configured level.
func setupOutput(cfg *config.Config) {
	color.NoColor = color.NoColor || cfg.GetNoColor()

	diag.Enable()
	if os.Getenv("HTTPBRIDGE_LOG") == "" && cfg.LogLevel != "" {
		if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			diag.SetLevel(lvl)
		}
	}
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
