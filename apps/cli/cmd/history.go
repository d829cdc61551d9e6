package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httpbridge/packages/core/config"
	"github.com/abdul-hamid-achik/httpbridge/packages/history"
)

var (
	historyDBFlag    string
	historyLimitFlag int
	historyJSONFlag  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved benchmark runs",
	Long: `List, show and delete benchmark runs saved with "httpbridge bench --save".

Examples:
  httpbridge history list
  httpbridge history list --limit 5 --json
  httpbridge history show 3f2a
  httpbridge history delete 3f2a9c1e-...`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run; any unique id prefix works",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one run by full id",
	Args:  cobra.ExactArgs(1),
	RunE:  historyDeleteCommand,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "db", "", "History database path (default from config)")
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Maximum runs to list (0 for all)")
	historyListCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Output as JSON")
	historyShowCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Output as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

func openHistory() (*history.Store, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	dsn := historyDBFlag
	if dsn == "" {
		dsn = cfg.HistoryDB
	}
	if dsn == "" {
		dsn = config.DefaultHistoryDB()
	}
	store, err := history.Open(dsn)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return store, nil
}

func historyListCommand(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSONFlag {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No saved runs.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTRANSPORT\tMODE\tREQUESTS\tERRORS\tRPS\tP95\tRESULT\tTARGET")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.1f\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Transport,
			r.Mode,
			r.Total,
			r.Errors,
			r.RPS,
			r.P95.Round(time.Microsecond),
			passLabel(r.Passed),
			r.Target,
		)
	}
	return tw.Flush()
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return withExitCode(ExitUsageError, fmt.Errorf("no run matches %q", args[0]))
		}
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSONFlag {
		return writeJSON(out, run)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  When:       %s\n", run.CreatedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "  Target:     %s\n", run.Target)
	fmt.Fprintf(out, "  Transport:  %s (%s mode)\n", run.Transport, run.Mode)
	fmt.Fprintf(out, "  Duration:   %s\n", run.Summary.Duration)
	fmt.Fprintf(out, "  Requests:   %d total, %d ok, %d errors, %d timeouts\n",
		run.Summary.Requests.Total, run.Summary.Requests.Success, run.Summary.Requests.Failed, run.Summary.Requests.Timeouts)
	fmt.Fprintf(out, "  Throughput: %.1f req/s\n", run.Summary.Rates.RPS)

	l := run.Summary.LatencyMs
	fmt.Fprintf(out, "  Latency ms: min %.2f  p50 %.2f  p95 %.2f  p99 %.2f  max %.2f\n",
		l.Min, l.P50, l.P95, l.P99, l.Max)

	if len(run.Summary.Errors) > 0 {
		fmt.Fprintln(out, "  Errors:")
		for _, kind := range slices.Sorted(maps.Keys(run.Summary.Errors)) {
			fmt.Fprintf(out, "    %-22s %d\n", kind, run.Summary.Errors[kind])
		}
	}
	fmt.Fprintf(out, "  Result:     %s\n", passLabel(run.Passed))
	return nil
}

func historyDeleteCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return withExitCode(ExitUsageError, fmt.Errorf("no run with id %q", args[0]))
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func passLabel(passed bool) string {
	if passed {
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
