package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
	"github.com/Takch02/blabus-session2-item1/internal/threshold"
)

const lockRetryDelay = 50 * time.Millisecond

// RunInfo describes the run a summary belongs to.
type RunInfo struct {
	Target    string    `json:"target"`
	VUs       int       `json:"vus"`
	StartedAt time.Time `json:"started_at"`
}

// Summary is the document written by WriteSummary.
type Summary struct {
	RunID string  `json:"run_id"`
	Run   RunInfo `json:"run"`
	Report
}

// NewSummary assigns a fresh run id to the finished run's report.
func NewSummary(run RunInfo, stats metrics.Stats, results []threshold.Result) Summary {
	return Summary{
		RunID:  ulid.Make().String(),
		Run:    run,
		Report: newReport(stats, results),
	}
}

// WriteSummary writes s as JSON to path. Concurrent writers to the same path
// are serialized through an exclusive lock on path+".lock", and the file is
// replaced atomically so readers never see a partial document.
func WriteSummary(ctx context.Context, path string, s Summary) error {
	if path == "" {
		return fmt.Errorf("summary path is empty")
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock summary %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock summary %s: not acquired", path)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
