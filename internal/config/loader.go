package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envKeys lists the settings that may be supplied through AUCTIONLOAD_* variables.
var envKeys = []string{
	"target", "timeout", "vus", "duration", "pacing", "graceful_stop", "rate",
	"thresholds", "checks.status", "checks.json_path", "json_output",
	"summary_export", "dashboard", "log_errors", "log.level", "log.format",
	"metrics_addr", "tracing.endpoint", "tracing.protocol", "tracing.insecure",
	"tracing.service_name", "tracing.sample_rate", "tracing.propagate",
}

// Loader builds a Config from defaults, a config file, the environment and flags.
type Loader struct {
	// HomeDir overrides the directory searched for the default config file.
	HomeDir string
	// LookupEnv overrides os.LookupEnv; used by tests.
	LookupEnv func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{}
}

// NewFlagSet returns a flag set carrying every scenario flag.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("auctionload", pflag.ContinueOnError)
	configureFlags(fs)
	return fs
}

// Load resolves the configuration. Flags must already be parsed.
func (l *Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	if fs == nil {
		fs = NewFlagSet()
	}

	configPath := ""
	if flag := fs.Lookup("config"); flag != nil {
		configPath = strings.TrimSpace(flag.Value.String())
	}
	if configPath == "" {
		configPath = l.defaultConfigPath()
	}

	cfgViper := viper.New()
	for _, key := range envKeys {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, ok := l.lookupEnv(envName); ok {
			if err := cfgViper.BindEnv(key, envName); err != nil {
				return nil, fmt.Errorf("bind %s: %w", envName, err)
			}
		}
	}

	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{issues: []string{fmt.Sprintf("read config %s: %v", configPath, err)}}
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, &ConfigurationError{issues: []string{err.Error()}}
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &ConfigurationError{issues: []string{err.Error()}}
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

func (l *Loader) lookupEnv(key string) (string, bool) {
	if l.LookupEnv != nil {
		return l.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

// defaultConfigPath returns $HOME/.auctionload.yaml when it exists.
func (l *Loader) defaultConfigPath() string {
	home := l.HomeDir
	if home == "" {
		dir, err := homedir.Dir()
		if err != nil {
			return ""
		}
		home = dir
	}
	path := filepath.Join(home, defaultConfigName)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// applyConfigSettings applies settings from a config file and the environment.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "vus", "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("vus: %w", err)
		}
		cfg.VUs = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "pacing", "sleep"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("pacing: %w", err)
		}
		cfg.Pacing = dur
	}

	if raw, ok := lookupSetting(settings, "graceful_stop", "gracefulstop", "graceful-stop"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("graceful_stop: %w", err)
		}
		cfg.GracefulStop = dur
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := parseThresholdSetting(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = vals
	}

	if raw, ok := lookupSetting(settings, "checks"); ok {
		checks, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("checks: %w", err)
		}
		if v, ok := lookupSetting(checks, "status"); ok {
			status, err := asInt(v)
			if err != nil {
				return fmt.Errorf("checks.status: %w", err)
			}
			cfg.Checks.Status = status
		}
		if v, ok := lookupSetting(checks, "json_path", "jsonpath"); ok {
			path, err := asString(v)
			if err != nil {
				return fmt.Errorf("checks.json_path: %w", err)
			}
			cfg.Checks.JSONPath = strings.TrimSpace(path)
		}
	}

	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "summary_export", "summaryexport", "summary-export"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summary_export: %w", err)
		}
		cfg.SummaryExport = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "log_errors", "logerrors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_errors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		logSettings, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		if v, ok := lookupSetting(logSettings, "level"); ok {
			level, err := asString(v)
			if err != nil {
				return fmt.Errorf("log.level: %w", err)
			}
			cfg.Log.Level = level
		}
		if v, ok := lookupSetting(logSettings, "format"); ok {
			format, err := asString(v)
			if err != nil {
				return fmt.Errorf("log.format: %w", err)
			}
			cfg.Log.Format = format
		}
	}

	if raw, ok := lookupSetting(settings, "metrics_addr", "metricsaddr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

// parseThresholdSetting accepts a list of expressions or a k6-style map of
// metric name to expression list, e.g. {http_req_duration: ["p(95)<5000"]}.
func parseThresholdSetting(raw interface{}) ([]string, error) {
	switch raw.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
		byMetric, err := toStringKeyMap(raw)
		if err != nil {
			return nil, err
		}
		var out []string
		for metric, exprs := range byMetric {
			list, err := asStringSlice(exprs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", metric, err)
			}
			for _, expr := range list {
				out = append(out, metric+": "+strings.TrimSpace(expr))
			}
		}
		sort.Strings(out)
		return out, nil
	default:
		return asStringSlice(raw)
	}
}

func parseTracing(raw interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return base, err
	}
	out := base
	if v, ok := lookupSetting(settings, "endpoint"); ok {
		if out.Endpoint, err = asString(v); err != nil {
			return base, fmt.Errorf("endpoint: %w", err)
		}
	}
	if v, ok := lookupSetting(settings, "protocol"); ok {
		if out.Protocol, err = asString(v); err != nil {
			return base, fmt.Errorf("protocol: %w", err)
		}
		out.Protocol = strings.ToLower(strings.TrimSpace(out.Protocol))
	}
	if v, ok := lookupSetting(settings, "insecure"); ok {
		if out.Insecure, err = asBool(v); err != nil {
			return base, fmt.Errorf("insecure: %w", err)
		}
	}
	if v, ok := lookupSetting(settings, "service_name", "servicename"); ok {
		if out.ServiceName, err = asString(v); err != nil {
			return base, fmt.Errorf("service_name: %w", err)
		}
	}
	if v, ok := lookupSetting(settings, "sample_rate", "samplerate"); ok {
		if out.SampleRate, err = asFloat64(v); err != nil {
			return base, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if v, ok := lookupSetting(settings, "propagate"); ok {
		if out.Propagate, err = asBool(v); err != nil {
			return base, fmt.Errorf("propagate: %w", err)
		}
	}
	return out, nil
}
