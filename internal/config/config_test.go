package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takch02/blabus-session2-item1/internal/config"
)

func noEnv(string) (string, bool) { return "", false }

func load(t *testing.T, loader *config.Loader, args ...string) (*config.Config, error) {
	t.Helper()
	fs := config.NewFlagSet()
	require.NoError(t, fs.Parse(args))
	return loader.Load(fs)
}

func TestDefaultsDescribeAuctionScenario(t *testing.T) {
	loader := &config.Loader{HomeDir: t.TempDir(), LookupEnv: noEnv}
	cfg, err := load(t, loader)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.VUs)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, time.Second, cfg.Pacing)
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, "http://localhost:8085/api/public/auctions/?status=IN_PROGRESS&page=0&size=10&sort=newest,Desc", cfg.TargetURL)
	assert.Equal(t, "application/json", cfg.Headers["Content-Type"])
	assert.Equal(t, []string{"http_req_duration: p(95)<5000"}, cfg.Thresholds)
	assert.Equal(t, 200, cfg.Checks.Status)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := strings.Join([]string{
		"vus: 4",
		"duration: 45s",
		"pacing: 2s",
		"headers:",
		"  X-Env: staging",
		"thresholds:",
		"  http_req_duration:",
		"    - p(95)<3000",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := &config.Loader{HomeDir: dir, LookupEnv: noEnv}
	cfg, err := load(t, loader, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 4, cfg.VUs)
	assert.Equal(t, 45*time.Second, cfg.Duration)
	assert.Equal(t, 2*time.Second, cfg.Pacing)
	assert.Equal(t, "staging", cfg.Headers["X-Env"])
	assert.Equal(t, []string{"http_req_duration: p(95)<3000"}, cfg.Thresholds)
}

func TestHomeConfigIsPickedUp(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".auctionload.yaml"), []byte("vus: 7\n"), 0o600))

	loader := &config.Loader{HomeDir: home, LookupEnv: noEnv}
	cfg, err := load(t, loader)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.VUs)
}

func TestPrecedenceFileEnvFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vus": 4, "duration": "10s", "pacing": "3s"}`), 0o600))

	env := map[string]string{
		"AUCTIONLOAD_DURATION": "20s",
		"AUCTIONLOAD_PACING":   "250ms",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	loader := &config.Loader{HomeDir: dir, LookupEnv: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}

	cfg, err := load(t, loader, "--config", path, "--pacing", "1500ms")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.VUs, "file value")
	assert.Equal(t, 20*time.Second, cfg.Duration, "env overrides file")
	assert.Equal(t, 1500*time.Millisecond, cfg.Pacing, "flag overrides env")
}

func TestMissingConfigFileIsConfigurationError(t *testing.T) {
	loader := &config.Loader{HomeDir: t.TempDir(), LookupEnv: noEnv}
	_, err := load(t, loader, "--config", filepath.Join(t.TempDir(), "absent.yaml"))

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestConfigValidationErrors(t *testing.T) {
	valid := func() config.Config { return *config.Default() }

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "missing target",
			mutate: func(c *config.Config) { c.TargetURL = "" },
			want:   []string{"target is required"},
		},
		{
			name:   "missing required query parameters",
			mutate: func(c *config.Config) { c.TargetURL = "http://localhost:8085/api/public/auctions/?status=IN_PROGRESS" },
			want:   []string{`"page"`, `"size"`, `"sort"`},
		},
		{
			name:   "unsupported scheme",
			mutate: func(c *config.Config) { c.TargetURL = "ftp://localhost/?status=a&page=0&size=1&sort=x" },
			want:   []string{"scheme"},
		},
		{
			name: "non-positive load values",
			mutate: func(c *config.Config) {
				c.VUs = 0
				c.Duration = 0
				c.Pacing = -time.Second
				c.Rate = -1
			},
			want: []string{"vus", "duration", "pacing", "rate"},
		},
		{
			name:   "non GET method",
			mutate: func(c *config.Config) { c.Method = "POST" },
			want:   []string{"method must be GET"},
		},
		{
			name:   "bad check status",
			mutate: func(c *config.Config) { c.Checks.Status = 42 },
			want:   []string{"checks.status"},
		},
		{
			name: "dashboard and json conflict",
			mutate: func(c *config.Config) {
				c.Dashboard = true
				c.JSONOutput = true
			},
			want: []string{"mutually exclusive"},
		},
		{
			name:   "unparseable threshold",
			mutate: func(c *config.Config) { c.Thresholds = []string{"p(95)<5000", "fast please"} },
			want:   []string{"invalid threshold format", "fast please"},
		},
		{
			name:   "unknown log level",
			mutate: func(c *config.Config) { c.Log.Level = "chatty" },
			want:   []string{"log.level", "chatty"},
		},
		{
			name:   "tracing sample rate",
			mutate: func(c *config.Config) { c.Tracing.SampleRate = 1.5 },
			want:   []string{"sample_rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()

			var cfgErr *config.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.NotEmpty(t, cfgErr.Issues())
			for _, want := range tc.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateCollectsEveryIssue(t *testing.T) {
	cfg := config.Default()
	cfg.VUs = 0
	cfg.Thresholds = []string{"nope"}
	cfg.Log.Level = "loud"

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Len(t, cfgErr.Issues(), 3)
}

func TestWarnings(t *testing.T) {
	cfg := config.Default()
	assert.Empty(t, cfg.Warnings())

	cfg.VUs = 1000
	cfg.Pacing = 0
	assert.Len(t, cfg.Warnings(), 2)
}

func TestWriteYAMLRoundTrips(t *testing.T) {
	cfg := config.Default()
	cfg.Pacing = 750 * time.Millisecond
	cfg.Checks.JSONPath = "content"

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, cfg.WriteYAML(f))
	require.NoError(t, f.Close())

	loader := &config.Loader{HomeDir: dir, LookupEnv: noEnv}
	loaded, err := load(t, loader, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, cfg.TargetURL, loaded.TargetURL)
	assert.Equal(t, cfg.VUs, loaded.VUs)
	assert.Equal(t, cfg.Duration, loaded.Duration)
	assert.Equal(t, cfg.Pacing, loaded.Pacing)
	assert.Equal(t, cfg.Thresholds, loaded.Thresholds)
	assert.Equal(t, "content", loaded.Checks.JSONPath)
}
