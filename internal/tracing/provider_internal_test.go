package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Takch02/blabus-session2-item1/internal/config"
)

func TestResolveTargetFallsBackToEnvironment(t *testing.T) {
	env := map[string]string{
		"OTEL_SERVICE_NAME":           "listing-load",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
	}
	got := resolveTarget(config.TracingConfig{Propagate: true}, func(k string) string { return env[k] })

	assert.Equal(t, exportTarget{serviceName: "listing-load", endpoint: "otel:4317", protocol: "grpc"}, got)
}

func TestResolveTargetPrefersConfig(t *testing.T) {
	cfg := config.TracingConfig{
		Endpoint:    " collector:4318 ",
		Protocol:    "HTTP",
		ServiceName: "auction-smoke",
		Insecure:    true,
	}
	got := resolveTarget(cfg, func(string) string { return "ignored" })

	assert.Equal(t, exportTarget{serviceName: "auction-smoke", endpoint: "collector:4318", protocol: "http", insecure: true}, got)
}

func TestResolveTargetDefaultServiceName(t *testing.T) {
	got := resolveTarget(config.TracingConfig{}, func(string) string { return "" })
	assert.Equal(t, defaultServiceName, got.serviceName)
	assert.Empty(t, got.endpoint)
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, sdktrace.ParentBased(sdktrace.NeverSample()).Description()},
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		s, err := samplerFor(tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Description())
	}

	_, err := samplerFor(1.01)
	assert.Error(t, err)
}
