package sysmon

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSampler struct {
	mu     sync.Mutex
	values []float64
	err    error
}

func (s *scriptedSampler) Percent(time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if len(s.values) == 0 {
		return 0, nil
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

func TestRecordTracksPeakMeanAndSaturation(t *testing.T) {
	var buf bytes.Buffer
	m, err := New(zerolog.New(&buf), WithSampler(&scriptedSampler{}), WithThreshold(80))
	require.NoError(t, err)

	for _, pct := range []float64{20, 85, 95, 40} {
		m.record(pct)
	}

	s := m.Summary()
	assert.Equal(t, 4, s.Samples)
	assert.Equal(t, 95.0, s.Peak)
	assert.InDelta(t, 60.0, s.Mean, 1e-9)
	assert.Equal(t, 2, s.Saturated)

	logs := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("saturated")), "warn only on the transition: %s", logs)
	assert.Contains(t, logs, "recovered")
}

func TestRunNormalizesByCPUCount(t *testing.T) {
	sampler := &scriptedSampler{values: []float64{0, 400, 400, 400}}
	m, err := New(zerolog.Nop(), WithSampler(sampler), WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	m.numCPU = 4

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	s := m.Summary()
	require.Greater(t, s.Samples, 0)
	assert.Equal(t, 100.0, s.Peak)
}

func TestRunStopsWhenSamplingUnavailable(t *testing.T) {
	m, err := New(zerolog.Nop(), WithSampler(&scriptedSampler{err: errors.New("no procfs")}), WithInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return when the sampler cannot prime")
	}
	assert.Zero(t, m.Summary().Samples)
}

func TestNewUsesOwnProcess(t *testing.T) {
	m, err := New(zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, m.sampler)
	assert.Equal(t, DefaultInterval, m.interval)
	assert.Equal(t, DefaultThreshold, m.threshold)
}

func TestEmptySummary(t *testing.T) {
	m, err := New(zerolog.Nop(), WithSampler(&scriptedSampler{}))
	require.NoError(t, err)
	assert.Equal(t, Summary{}, m.Summary())
}
