package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takch02/blabus-session2-item1/internal/auctiontest"
	"github.com/Takch02/blabus-session2-item1/internal/config"
	"github.com/Takch02/blabus-session2-item1/internal/threshold"
)

// lockedBuffer is shared by the logger, progress line and VU goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr lockedBuffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// executeErr runs the root command and returns its error instead of an exit code.
func executeErr(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr lockedBuffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestRunPassesThresholds(t *testing.T) {
	srv := auctiontest.NewServer()
	defer srv.Close()

	code, stdout, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "2",
		"--duration", "300ms",
		"--pacing", "50ms",
		"--threshold", "p(95)<5000",
		"--json-output",
		"--log-level", "error",
	)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	var report struct {
		Total      int64 `json:"total"`
		Iterations int64 `json:"iterations"`
		Passed     bool  `json:"passed"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Positive(t, report.Total)
	assert.Positive(t, report.Iterations)
	assert.True(t, report.Passed)

	for _, req := range srv.Requests() {
		assert.Equal(t, auctiontest.ListingQuery, req.RawQuery)
	}
}

func TestRunThresholdBreachExits99(t *testing.T) {
	srv := auctiontest.NewServer()
	defer srv.Close()

	code, stdout, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "1",
		"--duration", "200ms",
		"--pacing", "0s",
		"--threshold", "http_req_duration: max<0",
		"--log-level", "error",
	)
	assert.Equal(t, exitThresholdsFail, code)
	assert.Contains(t, stderr, "threshold(s) breached")
	assert.Contains(t, stdout, "FAIL")
}

func TestFailedChecksDoNotChangeExitCode(t *testing.T) {
	srv := auctiontest.NewServer(auctiontest.WithStatus(500))
	defer srv.Close()

	code, stdout, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "1",
		"--duration", "200ms",
		"--pacing", "20ms",
		"--json-output",
		"--log-level", "error",
	)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, `"fails"`)
}

func TestConfigurationErrorExits1(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		configErr bool
	}{
		{"zero vus", []string{"--vus", "0"}, true},
		{"missing query params", []string{"--target", "http://localhost:8085/api/public/auctions/"}, true},
		{"bad threshold", []string{"--threshold", "fast please"}, true},
		{"unknown log level", []string{"--log-level", "chatty"}, true},
		{"unknown flag", []string{"--nope"}, false},
		{"positional args", []string{"extra"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, exitSetupError, code)
			assert.Contains(t, stderr, "Error:")

			err := executeErr(t, tt.args...)
			require.Error(t, err)
			var cfgErr *config.ConfigurationError
			assert.Equal(t, tt.configErr, errors.As(err, &cfgErr), "error: %v", err)
		})
	}
}

func TestMetricsAddrBindFailureExits1(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := auctiontest.NewServer()
	defer srv.Close()

	code, _, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "1",
		"--duration", "100ms",
		"--metrics-addr", ln.Addr().String(),
		"--log-level", "error",
	)
	assert.Equal(t, exitSetupError, code)
	assert.Contains(t, stderr, "metrics")
	assert.Zero(t, srv.Count(), "no request should be sent when setup fails")
}

func TestSummaryExport(t *testing.T) {
	srv := auctiontest.NewServer()
	defer srv.Close()
	path := filepath.Join(t.TempDir(), "summary.json")

	code, _, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "1",
		"--duration", "150ms",
		"--pacing", "0s",
		"--summary-export", path,
		"--json-output",
		"--log-level", "error",
	)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.NotEmpty(t, summary["run_id"])
	assert.Contains(t, summary, "run")
}

func TestProgressAndReportGoToSeparateStreams(t *testing.T) {
	srv := auctiontest.NewServer()
	defer srv.Close()

	code, stdout, stderr := runCLI(t,
		"--target", srv.ListingURL(),
		"--vus", "1",
		"--duration", "1200ms",
		"--pacing", "100ms",
		"--log-format", "json",
	)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Load Test Results")
	assert.Contains(t, stdout, "status is 200")
	assert.Contains(t, stderr, "starting scenario")
	assert.Contains(t, stderr, "VUs:")
	assert.NotContains(t, stdout, "starting scenario")
}

func TestInitPrintsLoadableConfig(t *testing.T) {
	code, stdout, _ := runCLI(t, "init")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "target:")

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stdout), 0o644))

	fs := config.NewFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", path}))
	cfg, err := config.NewLoader().Load(fs)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTarget, cfg.TargetURL)
	assert.NoError(t, cfg.Validate())
}

func TestInitWritesFileOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")

	code, _, _ := runCLI(t, "init", "-o", path)
	require.Equal(t, exitOK, code)
	_, err := os.Stat(path)
	require.NoError(t, err)

	code, _, stderr := runCLI(t, "init", "-o", path)
	assert.Equal(t, exitSetupError, code)
	assert.Contains(t, stderr, "exists")

	code, _, _ = runCLI(t, "init", "-o", path, "--force")
	assert.Equal(t, exitOK, code)
}

func TestExitCode(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, exitOK, exitCode(nil, &stderr))
	assert.Equal(t, exitSetupError, exitCode(errors.New("boom"), &stderr))
	assert.Equal(t, exitThresholdsFail, exitCode(&threshold.Breach{}, &stderr))
}
