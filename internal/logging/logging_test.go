package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takch02/blabus-session2-item1/internal/config"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	logger.Info().Int("vus", 10).Msg("starting")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "starting", entry["message"])
	assert.Equal(t, float64(10), entry["vus"])
}

func TestConsoleFormatIsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{})
	require.NoError(t, err)

	logger.Info().Msg("starting")
	assert.Contains(t, buf.String(), "starting")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output should not be JSON")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "WARN", Format: "json"})
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInvalidSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}
