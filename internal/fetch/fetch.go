// Package fetch executes an ordered list of retrieval strategies against
// an upstream target. Each strategy owns its retry loop; the chain driver
// tries strategies in order and returns the first successful raw body.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Target is one upstream endpoint to retrieve. Form set implies a POST
// with url-encoded body.
type Target struct {
	URL    string
	Method string
	Header http.Header
	Form   url.Values
}

func (t Target) method() string {
	if t.Method != "" {
		return t.Method
	}
	if len(t.Form) > 0 {
		return http.MethodPost
	}
	return http.MethodGet
}

// Strategy is one way of retrieving a target. Attempt returns the raw
// response body on success; retry policy is internal to the strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target Target) ([]byte, error)
}

// FetchError reports that every configured strategy was exhausted for a
// target. It carries the last-seen status and underlying cause. Callers
// must not re-invoke the fetch themselves; retries happened inside.
type FetchError struct {
	Target     string
	LastStatus int
	Err        error
}

func (e *FetchError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("fetch %s: all strategies failed (last status %d): %v", e.Target, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("fetch %s: all strategies failed: %v", e.Target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError marks a non-200 response inside a strategy so the chain can
// surface the last-seen status.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
