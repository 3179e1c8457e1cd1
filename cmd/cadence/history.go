package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/cadence/internal/history"
)

var errRunNotFound = errors.New("run not found")

// newHistoryCommand lists recorded runs, or shows one run when given its ID.
func newHistoryCommand(stdout io.Writer) *cobra.Command {
	var (
		path   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:           "history [run-id]",
		Short:         "Show runs recorded with --history-file",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				entry, ok, err := history.Get(path, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", errRunNotFound, args[0])
				}
				if asJSON {
					return writeJSON(stdout, entry)
				}
				printEntry(stdout, entry)
				return nil
			}

			entries, err := history.List(path)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(stdout, entries)
			}
			printEntries(stdout, entries)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.Flags().StringVar(&path, "history-file", "", "History file written by previous runs")
	cmd.Flags().BoolVar(&asJSON, "json-output", false, "Emit JSON instead of text")
	_ = cmd.MarkFlagRequired("history-file")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-26s  %-20s  %-8s  %9s  %7s  %s\n", "RUN", "STARTED", "SCENARIO", "REQUESTS", "FAILED", "RESULT")
	for _, e := range entries {
		fmt.Fprintf(w, "%-26s  %-20s  %-8s  %9d  %7d  %s\n",
			e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.Scenario,
			e.Summary.TotalRequests, e.Summary.Fail, resultLabel(e.Passed))
	}
}

func printEntry(w io.Writer, e history.Entry) {
	fmt.Fprintf(w, "Run:               %s\n", e.ID)
	fmt.Fprintf(w, "Started:           %s\n", e.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Target:            %s (%s)\n", e.Target, e.Scenario)
	fmt.Fprintf(w, "Burst:             %d requests every %gs across %d VU(s)\n", e.BurstSize, e.BudgetSec, e.VUs)
	fmt.Fprintf(w, "Iterations:        %d (%d overruns)\n", e.Summary.Iterations, e.Summary.Overruns)
	fmt.Fprintf(w, "Total Requests:    %d\n", e.Summary.TotalRequests)
	fmt.Fprintf(w, "Successful:        %d\n", e.Summary.Success)
	fmt.Fprintf(w, "Failed:            %d\n", e.Summary.Fail)
	fmt.Fprintf(w, "Mean Latency:      %.2fms\n", e.Summary.AvgLatencyMs)
	fmt.Fprintf(w, "P95 Latency:       %.2fms\n", e.Summary.P95LatencyMs)
	fmt.Fprintf(w, "P99 Latency:       %.2fms\n", e.Summary.P99LatencyMs)
	fmt.Fprintf(w, "Duration:          %.0fms\n", e.Summary.DurationMs)
	fmt.Fprintf(w, "Result:            %s\n", resultLabel(e.Passed))
}

func resultLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
