package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Takch02/blabus-session2-item1/internal/threshold"
)

// Scenario defaults for the public auction listing load test.
const (
	DefaultTarget      = "http://localhost:8085/api/public/auctions/?status=IN_PROGRESS&page=0&size=10&sort=newest,Desc"
	DefaultVUs         = 10
	DefaultDuration    = 30 * time.Second
	DefaultPacing      = time.Second
	DefaultTimeout     = 60 * time.Second
	DefaultThreshold   = "http_req_duration: p(95)<5000"
	DefaultStatus      = http.StatusOK
	DefaultContentType = "application/json"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	EnvPrefix          = "AUCTIONLOAD"
	defaultConfigName  = ".auctionload.yaml"
	maxRecommendedVUs  = 500
	maxRecommendedRate = 1000
)

// RequiredQueryParams must be present on the target URL.
var RequiredQueryParams = []string{"status", "page", "size", "sort"}

type Config struct {
	TargetURL     string            `mapstructure:"target"`
	Method        string            `mapstructure:"method"`
	Headers       map[string]string `mapstructure:"headers"`
	VUs           int               `mapstructure:"vus"`
	Duration      time.Duration     `mapstructure:"duration"`
	Pacing        time.Duration     `mapstructure:"pacing"`
	GracefulStop  time.Duration     `mapstructure:"graceful_stop"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Rate          int               `mapstructure:"rate"`
	Thresholds    []string          `mapstructure:"thresholds"`
	Checks        ChecksConfig      `mapstructure:"checks"`
	Log           LogConfig         `mapstructure:"log"`
	JSONOutput    bool              `mapstructure:"json_output"`
	SummaryExport string            `mapstructure:"summary_export"`
	Dashboard     bool              `mapstructure:"dashboard"`
	LogErrors     bool              `mapstructure:"log_errors"`
	MetricsAddr   string            `mapstructure:"metrics_addr"`
	Tracing       TracingConfig     `mapstructure:"tracing"`
	ConfigFile    string            `mapstructure:"-"`
}

// ChecksConfig controls the assertions evaluated on every response.
type ChecksConfig struct {
	Status   int    `mapstructure:"status"`
	JSONPath string `mapstructure:"json_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether spans should be produced at all.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// Default returns the built-in scenario: 10 VUs for 30s with p95 under 5s.
func Default() *Config {
	return &Config{
		TargetURL:  DefaultTarget,
		Method:     http.MethodGet,
		Headers:    map[string]string{"Content-Type": DefaultContentType},
		VUs:        DefaultVUs,
		Duration:   DefaultDuration,
		Pacing:     DefaultPacing,
		Timeout:    DefaultTimeout,
		Thresholds: []string{DefaultThreshold},
		Checks:     ChecksConfig{Status: DefaultStatus},
		Log:        LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Tracing:    TracingConfig{SampleRate: 1.0},
	}
}

// ConfigurationError reports every problem found in a Config. It is fatal to
// the run and always raised before any virtual user starts.
type ConfigurationError struct {
	issues []string
}

func (e *ConfigurationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.issues, "; "))
}

func (e *ConfigurationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Warnings returns non-fatal remarks about the configuration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > maxRecommendedRate {
		warnings = append(warnings, fmt.Sprintf("high iteration rate configured (%d/s); ensure you are authorized to load the target", c.Rate))
	}
	if c.VUs > maxRecommendedVUs {
		warnings = append(warnings, fmt.Sprintf("high virtual user count configured (%d); ensure you are authorized to load the target", c.VUs))
	}
	if c.Pacing == 0 {
		warnings = append(warnings, "pacing is 0: virtual users will issue requests back to back")
	}
	return warnings
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateTarget(c.TargetURL)...)

	if m := strings.ToUpper(strings.TrimSpace(c.Method)); m != "" && m != http.MethodGet {
		issues = append(issues, fmt.Sprintf("method must be GET, got %q", c.Method))
	}
	for k, v := range c.Headers {
		if strings.TrimSpace(k) == "" {
			issues = append(issues, "header name cannot be empty")
		}
		if strings.ContainsAny(k, "\r\n") || strings.ContainsAny(v, "\r\n") {
			issues = append(issues, fmt.Sprintf("header %q contains a line break", k))
		}
	}

	if c.VUs < 1 {
		issues = append(issues, "vus must be >= 1")
	}
	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.Pacing < 0 {
		issues = append(issues, "pacing must be >= 0")
	}
	if c.GracefulStop < 0 {
		issues = append(issues, "graceful_stop must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Checks.Status < 100 || c.Checks.Status > 599 {
		issues = append(issues, fmt.Sprintf("checks.status must be a valid HTTP status, got %d", c.Checks.Status))
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json_output are mutually exclusive")
	}

	for _, raw := range c.Thresholds {
		if _, err := threshold.Parse(raw); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if lvl := strings.TrimSpace(c.Log.Level); lvl != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			issues = append(issues, fmt.Sprintf("log.level %q is not a known level", c.Log.Level))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return &ConfigurationError{issues: issues}
	}
	return nil
}

func validateTarget(target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return []string{"target is required"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return []string{fmt.Sprintf("target is not a valid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("target scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"target must include a host"}
	}
	query := u.Query()
	var issues []string
	for _, param := range RequiredQueryParams {
		if _, ok := query[param]; !ok {
			issues = append(issues, fmt.Sprintf("target is missing query parameter %q", param))
		}
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %g", t.SampleRate))
	}
	return issues
}
