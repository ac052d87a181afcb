package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input Options
		want  Options
	}{
		{
			name:  "defaults",
			input: Options{},
			want:  Options{VUs: 1},
		},
		{
			name: "negative values corrected",
			input: Options{
				VUs:           -5,
				Duration:      -time.Second,
				GracefulStop:  -time.Second,
				RatePerSecond: -1,
			},
			want: Options{VUs: 1},
		},
		{
			name: "preserve valid values",
			input: Options{
				VUs:           10,
				Duration:      30 * time.Second,
				GracefulStop:  2 * time.Second,
				RatePerSecond: 50,
			},
			want: Options{
				VUs:           10,
				Duration:      30 * time.Second,
				GracefulStop:  2 * time.Second,
				RatePerSecond: 50,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.input
			opts.normalize()

			assert.NotNil(t, opts.LimiterFactory)
			assert.Equal(t, tt.want.VUs, opts.VUs)
			assert.Equal(t, tt.want.Duration, opts.Duration)
			assert.Equal(t, tt.want.GracefulStop, opts.GracefulStop)
			assert.Equal(t, tt.want.RatePerSecond, opts.RatePerSecond)
		})
	}
}

func TestLimiterFactory(t *testing.T) {
	opts := Options{}
	opts.normalize()

	assert.Equal(t, rate.Inf, opts.LimiterFactory(0).Limit(), "0 means unlimited")

	limiter := opts.LimiterFactory(100)
	assert.Equal(t, rate.Limit(100), limiter.Limit())
	assert.Equal(t, 100, limiter.Burst())
}
