package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/httpx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
)

const (
	// DefaultMaxAttempts bounds the direct strategy's retry loop.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first backoff step; it doubles per attempt.
	DefaultBaseDelay = time.Second
)

// Direct retrieves a target over plain HTTP with anti-bot evasion headers
// and a cookie jar (both supplied by httpx). Transport errors and non-200
// statuses are retried with exponential backoff up to MaxAttempts; the
// first 200 response wins.
type Direct struct {
	Client      *httpx.Client
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      zerolog.Logger
}

// NewDirect builds the canonical strategy with defaults.
func NewDirect(client *httpx.Client) *Direct {
	return &Direct{
		Client:      client,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Logger:      logx.Silent(),
	}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Attempt(ctx context.Context, target Target) ([]byte, error) {
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := d.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error
	delay := base
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		body, err := d.once(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		d.Logger.Warn().
			Str("url", target.URL).
			Int("attempt", attempt+1).
			Err(err).
			Msg("direct fetch attempt failed")
	}
	return nil, lastErr
}

func (d *Direct) once(ctx context.Context, target Target) ([]byte, error) {
	var bodyReader io.Reader
	if len(target.Form) > 0 {
		bodyReader = strings.NewReader(target.Form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, target.method(), target.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	if len(target.Form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, vs := range target.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := d.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &statusError{status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
