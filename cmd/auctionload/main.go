package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Takch02/blabus-session2-item1/internal/config"
	"github.com/Takch02/blabus-session2-item1/internal/dashboard"
	"github.com/Takch02/blabus-session2-item1/internal/httpclient"
	"github.com/Takch02/blabus-session2-item1/internal/logging"
	"github.com/Takch02/blabus-session2-item1/internal/metrics"
	"github.com/Takch02/blabus-session2-item1/internal/metrics/promexport"
	"github.com/Takch02/blabus-session2-item1/internal/output"
	"github.com/Takch02/blabus-session2-item1/internal/runner"
	"github.com/Takch02/blabus-session2-item1/internal/scenario"
	"github.com/Takch02/blabus-session2-item1/internal/sysmon"
	"github.com/Takch02/blabus-session2-item1/internal/threshold"
	"github.com/Takch02/blabus-session2-item1/internal/tracing"
)

const (
	exitOK             = 0
	exitSetupError     = 1
	exitThresholdsFail = 99

	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return exitCode(cmd.ExecuteContext(ctx), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var breach *threshold.Breach
	if errors.As(err, &breach) {
		return exitThresholdsFail
	}
	return exitSetupError
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "auctionload",
		Short: "Load test the public auction listing endpoint",
		Long: `auctionload runs a fixed pool of virtual users against the public auction
listing endpoint. Each user repeatedly fetches one page of in-progress
auctions, checks the response, and pauses before the next iteration.
Thresholds are evaluated at the end of the run; a breach exits with code 99.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout, stderr)
		},
	}
	config.RegisterFlags(root)
	root.AddCommand(newInitCommand(stdout))
	return root
}

func newInitCommand(stdout io.Writer) *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default scenario as a YAML config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if path == "" {
				return config.Default().WriteYAML(stdout)
			}
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := config.Default().WriteYAML(f); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", path, err)
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "Write the config to this file instead of stdout")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(stderr, cfg.Log)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	parsed, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	evaluator := threshold.NewEvaluator(parsed)

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdownTracing(provider, logger)

	collector := metrics.NewCollector()
	iteration, err := scenario.NewIteration(
		scenario.FromConfig(cfg),
		httpclient.NewClient(cfg.Timeout),
		collector,
		scenario.WithTracing(provider),
	)
	if err != nil {
		return err
	}

	var requester runner.Requester = iteration
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, runner.ZerologFailureLogger{Logger: logger})
	}
	r := runner.New(runner.Options{
		VUs:           cfg.VUs,
		Duration:      cfg.Duration,
		GracefulStop:  cfg.GracefulStop,
		RatePerSecond: cfg.Rate,
		Requester:     requester,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var exporter *promexport.Exporter
	if cfg.MetricsAddr != "" {
		ln, err := promexport.Listen(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		exporter = promexport.New()
		collector.AddObserver(exporter)
		go func() {
			if err := exporter.Serve(runCtx, ln, logger); err != nil {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics endpoint failed")
			}
		}()
	}

	monitor := startSysmon(runCtx, logger)

	stopDisplay := startDisplay(cfg, collector, r, cancelRun, stderr, logger)

	logger.Info().
		Str("target", cfg.TargetURL).
		Int("vus", cfg.VUs).
		Dur("duration", cfg.Duration).
		Dur("pacing", cfg.Pacing).
		Msg("starting scenario")

	startedAt := time.Now()
	if exporter != nil {
		exporter.SetVUs(cfg.VUs)
	}
	result := r.Run(runCtx)
	if exporter != nil {
		exporter.SetVUs(0)
	}
	stopDisplay()

	logger.Info().
		Int64("iterations", result.Iterations).
		Int64("failed", result.Failures).
		Int64("interrupted", result.Interrupted).
		Dur("elapsed", result.Duration).
		Msg("run finished")
	if ctx.Err() != nil {
		logger.Warn().Msg("run interrupted by signal; results cover the partial run")
	}
	if monitor != nil {
		if s := monitor.Summary(); s.Saturated > 0 {
			logger.Warn().
				Int("saturated_samples", s.Saturated).
				Float64("peak_cpu_percent", s.Peak).
				Msg("load generator was CPU bound during the run")
		}
	}

	stats := collector.Stats(result.Duration)
	results := evaluator.Evaluate(stats)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, stats, results); err != nil {
			return err
		}
	} else if err := output.PrintReport(stdout, stats, results); err != nil {
		return err
	}

	if cfg.SummaryExport != "" {
		summary := output.NewSummary(output.RunInfo{
			Target:    cfg.TargetURL,
			VUs:       cfg.VUs,
			StartedAt: startedAt.UTC(),
		}, stats, results)
		writeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := output.WriteSummary(writeCtx, cfg.SummaryExport, summary)
		cancel()
		if err != nil {
			return err
		}
		logger.Info().Str("path", cfg.SummaryExport).Str("run_id", summary.RunID).Msg("summary exported")
	}

	return threshold.Verdict(results)
}

// startDisplay starts the dashboard or the progress line and returns the
// function that stops it.
func startDisplay(cfg *config.Config, collector *metrics.Collector, r *runner.Runner, cancel context.CancelFunc, stderr io.Writer, logger zerolog.Logger) func() {
	switch {
	case cfg.Dashboard:
		dash := dashboard.New(collector, r, dashboard.RunInfo{
			Target:   cfg.TargetURL,
			VUs:      cfg.VUs,
			Duration: cfg.Duration,
		}, cancel, nil)
		dash.Start()
		return func() {
			if err := dash.Stop(); err != nil {
				logger.Error().Err(err).Msg("dashboard failed")
			}
		}
	case !cfg.JSONOutput:
		progress := output.NewProgressReporter(collector, r, progressInterval, stderr)
		progress.Start()
		return progress.Stop
	default:
		return func() {}
	}
}

func startSysmon(ctx context.Context, logger zerolog.Logger) *sysmon.Monitor {
	monitor, err := sysmon.New(logger)
	if err != nil {
		logger.Debug().Err(err).Msg("cpu monitor disabled")
		return nil
	}
	go monitor.Run(ctx)
	return monitor
}

func shutdownTracing(p *tracing.Provider, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("flush traces")
	}
}
