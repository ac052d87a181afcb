package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all scenario flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// configureFlags sets up all CLI flags on the provided flag set. Defaults shown
// in help mirror Default(); only flags the user changed override file settings.
func configureFlags(flags *pflag.FlagSet) {
	def := Default()

	// Request flags
	flags.String("target", def.TargetURL, "Target URL including the status, page, size and sort query parameters")
	flags.StringSlice("header", nil, "Additional request header in key=value form (repeatable)")
	flags.Duration("timeout", def.Timeout, "Per-request timeout")

	// Scenario flags
	flags.IntP("vus", "u", def.VUs, "Number of concurrent virtual users")
	flags.DurationP("duration", "d", def.Duration, "How long to run the scenario (e.g. 30s, 1m)")
	flags.Duration("pacing", def.Pacing, "Pause after each iteration before the same virtual user starts the next one")
	flags.Duration("graceful-stop", 0, "Time in-flight iterations may finish after the duration elapses (0 interrupts them)")
	flags.IntP("rate", "r", 0, "Global cap on iterations per second across all virtual users (0 means unlimited)")
	flags.StringSlice("threshold", nil, "Threshold expression (repeatable, e.g. 'http_req_duration: p(95)<5000')")
	flags.Int("check-status", def.Checks.Status, "Expected HTTP status code for the status check")
	flags.String("check-json-path", "", "Optional JSON path that must exist in the response body (e.g. content)")

	// Output flags
	flags.Bool("json-output", false, "Emit the end-of-test summary as JSON")
	flags.String("summary-export", "", "Write the JSON summary to the given file")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed iteration")
	flags.String("log-level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "Log format (console or json)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9095)")
	flags.String("config", "", "Path to configuration file (JSON or YAML, default $HOME/"+defaultConfigName+")")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint for request spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("header") {
		vals, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		headers, err := parseHeaderFlags(vals)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("vus") {
		val, err := fs.GetInt("vus")
		if err != nil {
			return err
		}
		cfg.VUs = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("pacing") {
		val, err := fs.GetDuration("pacing")
		if err != nil {
			return err
		}
		cfg.Pacing = val
	}
	if fs.Changed("graceful-stop") {
		val, err := fs.GetDuration("graceful-stop")
		if err != nil {
			return err
		}
		cfg.GracefulStop = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = vals
	}
	if fs.Changed("check-status") {
		val, err := fs.GetInt("check-status")
		if err != nil {
			return err
		}
		cfg.Checks.Status = val
	}
	if fs.Changed("check-json-path") {
		val, err := fs.GetString("check-json-path")
		if err != nil {
			return err
		}
		cfg.Checks.JSONPath = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("summary-export") {
		val, err := fs.GetString("summary-export")
		if err != nil {
			return err
		}
		cfg.SummaryExport = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.Log.Level = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}
	return nil
}

// parseHeaderFlags turns key=value pairs into canonical header entries.
func parseHeaderFlags(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			key, value, ok = strings.Cut(raw, ":")
		}
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ConfigurationError{issues: []string{fmt.Sprintf("invalid header %q, expected key=value", raw)}}
		}
		headers[http.CanonicalHeaderKey(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}
