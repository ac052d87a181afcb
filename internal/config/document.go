package config

import (
	"io"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a scenario file. Durations are kept as
// strings so the file stays readable and round-trips through Load.
type document struct {
	Target       string            `yaml:"target"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	VUs          int               `yaml:"vus"`
	Duration     string            `yaml:"duration"`
	Pacing       string            `yaml:"pacing"`
	GracefulStop string            `yaml:"graceful_stop,omitempty"`
	Timeout      string            `yaml:"timeout"`
	Rate         int               `yaml:"rate,omitempty"`
	Thresholds   []string          `yaml:"thresholds"`
	Checks       checksDocument    `yaml:"checks"`
	Log          logDocument       `yaml:"log"`
}

type checksDocument struct {
	Status   int    `yaml:"status"`
	JSONPath string `yaml:"json_path,omitempty"`
}

type logDocument struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WriteYAML renders the scenario portion of c as a config file Load accepts.
func (c Config) WriteYAML(w io.Writer) error {
	doc := document{
		Target:     c.TargetURL,
		Headers:    c.Headers,
		VUs:        c.VUs,
		Duration:   c.Duration.String(),
		Pacing:     c.Pacing.String(),
		Timeout:    c.Timeout.String(),
		Rate:       c.Rate,
		Thresholds: c.Thresholds,
		Checks:     checksDocument{Status: c.Checks.Status, JSONPath: c.Checks.JSONPath},
		Log:        logDocument{Level: c.Log.Level, Format: c.Log.Format},
	}
	if c.GracefulStop > 0 {
		doc.GracefulStop = c.GracefulStop.String()
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
