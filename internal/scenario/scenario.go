// Package scenario defines the auction listing load scenario: the request each
// virtual user sends, the checks applied to every response and the iteration
// routine that ties them together.
package scenario

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Takch02/blabus-session2-item1/internal/config"
)

// Descriptor describes the single request an iteration issues.
type Descriptor struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Validate reports whether the descriptor targets a well formed listing URL.
func (d Descriptor) Validate() error {
	if !strings.EqualFold(d.Method, "GET") {
		return fmt.Errorf("method must be GET, got %q", d.Method)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must be absolute", d.URL)
	}
	query := u.Query()
	var missing []string
	for _, key := range config.RequiredQueryParams {
		if _, ok := query[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("url %q is missing query parameters %s", d.URL, strings.Join(missing, ", "))
	}
	return nil
}

// Scenario is the immutable per-run description shared by all virtual users.
type Scenario struct {
	Request Descriptor
	Checks  []Check
	Pacing  time.Duration
}

// FromConfig builds the scenario described by cfg. cfg must be validated.
func FromConfig(cfg *config.Config) Scenario {
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	checks := []Check{StatusCheck(cfg.Checks.Status)}
	if cfg.Checks.JSONPath != "" {
		checks = append(checks, JSONPathCheck(cfg.Checks.JSONPath))
	}

	return Scenario{
		Request: Descriptor{
			Method:  cfg.Method,
			URL:     cfg.TargetURL,
			Headers: headers,
		},
		Checks: checks,
		Pacing: cfg.Pacing,
	}
}

// Default returns the built-in auction listing scenario.
func Default() Scenario {
	return FromConfig(config.Default())
}
