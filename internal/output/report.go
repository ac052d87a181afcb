package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
	"github.com/Takch02/blabus-session2-item1/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats, results []threshold.Result) error {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d (%.2f%%)\n", stats.Failures, stats.FailureRate()*100)
	fmt.Fprintf(w, "Iterations:        %d", stats.Iterations)
	if stats.InterruptedIterations > 0 {
		fmt.Fprintf(w, " (%d interrupted)", stats.InterruptedIterations)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Checks) > 0 {
		fmt.Fprintln(w, "\nChecks:")
		if err := writeChecks(w, stats.Checks); err != nil {
			return err
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		if err := writeThresholds(w, results); err != nil {
			return err
		}
	}

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		if err := writeStatusBuckets(w, stats.StatusCodes); err != nil {
			return err
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrors(w, stats.Errors)
	}
	return nil
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(stats, results))
}

// Report is the machine-readable form of a finished run.
type Report struct {
	metrics.Stats
	CheckPassRate float64           `json:"check_pass_rate"`
	Thresholds    []ThresholdReport `json:"thresholds,omitempty"`
	Passed        bool              `json:"passed"`
}

// ThresholdReport is one evaluated threshold.
type ThresholdReport struct {
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	Pass       bool    `json:"pass"`
}

func newReport(stats metrics.Stats, results []threshold.Result) Report {
	r := Report{
		Stats:         stats,
		CheckPassRate: stats.CheckPassRate(),
		Passed:        threshold.Verdict(results) == nil,
	}
	for _, res := range results {
		r.Thresholds = append(r.Thresholds, ThresholdReport{
			Expression: res.Threshold.Raw,
			Actual:     res.Actual,
			Pass:       res.Pass,
		})
	}
	return r
}

func writeChecks(w io.Writer, checks []metrics.CheckStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Check", "Passes", "Fails", "Rate")
	for _, c := range checks {
		mark := "✓"
		if c.Fails > 0 {
			mark = "✗"
		}
		if err := table.Append(
			mark+" "+c.Name,
			strconv.FormatInt(c.Passes, 10),
			strconv.FormatInt(c.Fails, 10),
			fmt.Sprintf("%.2f%%", c.PassRate()*100),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeThresholds(w io.Writer, results []threshold.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Threshold", "Actual", "Result")
	for _, r := range results {
		verdict := "PASS"
		if !r.Pass {
			verdict = "FAIL"
		}
		if err := table.Append(r.Threshold.Raw, fmt.Sprintf("%.2f", r.Actual), verdict); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeStatusBuckets(w io.Writer, buckets map[string]int) error {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Count")
	for _, row := range metrics.FlattenStatusBuckets(buckets) {
		if err := table.Append(row.Code, strconv.Itoa(row.Count)); err != nil {
			return err
		}
	}
	return table.Render()
}

func writeErrors(w io.Writer, grouped map[string]int) {
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if grouped[names[i]] == grouped[names[j]] {
			return names[i] < names[j]
		}
		return grouped[names[i]] > grouped[names[j]]
	})
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %d\n", name, grouped[name])
	}
}
