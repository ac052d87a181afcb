package scenario

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Response is what checks see of a completed request. StatusCode is zero when
// the request produced no response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Check is a named predicate over a response.
type Check struct {
	Name  string
	Allow func(Response) bool
}

// CheckResult is the outcome of one check for one iteration.
type CheckResult struct {
	Name string
	Pass bool
}

// StatusCheck passes when the response status equals code.
func StatusCheck(code int) Check {
	return Check{
		Name:  fmt.Sprintf("status is %d", code),
		Allow: func(r Response) bool { return r.StatusCode == code },
	}
}

// JSONPathCheck passes when the body is JSON and path resolves to a value.
// Paths use gjson syntax, e.g. "data.content".
func JSONPathCheck(path string) Check {
	return Check{
		Name: "body has " + path,
		Allow: func(r Response) bool {
			if len(r.Body) == 0 || !gjson.ValidBytes(r.Body) {
				return false
			}
			return gjson.GetBytes(r.Body, path).Exists()
		},
	}
}

// Evaluate runs every check against r.
func Evaluate(checks []Check, r Response) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, CheckResult{Name: c.Name, Pass: c.Allow(r)})
	}
	return results
}

// CheckFailure reports the checks that failed in one iteration. It is a soft
// error: the run continues.
type CheckFailure struct {
	Failed     []CheckResult
	StatusCode int
	Err        error
}

func (e *CheckFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		names = append(names, fmt.Sprintf("%q", r.Name))
	}
	msg := "check " + strings.Join(names, ", ") + " failed"
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	default:
		return msg
	}
}

func (e *CheckFailure) Unwrap() error {
	return e.Err
}

func failedOnly(results []CheckResult) []CheckResult {
	var failed []CheckResult
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r)
		}
	}
	return failed
}
