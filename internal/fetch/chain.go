package fetch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
)

// Chain is the fallback-then-retry driver: strategies are tried in order,
// each owning its retry policy, until one succeeds. When all fail the
// call terminates with a FetchError carrying the last-seen status and
// cause. Callers must not assume partial success from a single strategy.
type Chain struct {
	Strategies []Strategy
	Logger     zerolog.Logger
}

// NewChain builds a chain over the given strategies.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{Strategies: strategies, Logger: logx.Silent()}
}

// Fetch runs the chain against target.
func (c *Chain) Fetch(ctx context.Context, target Target) ([]byte, error) {
	if len(c.Strategies) == 0 {
		return nil, &FetchError{Target: target.URL, Err: errors.New("no strategies configured")}
	}
	var lastErr error
	lastStatus := 0
	for _, s := range c.Strategies {
		body, err := s.Attempt(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) {
			lastStatus = se.status
		}
		c.Logger.Warn().
			Str("strategy", s.Name()).
			Str("url", target.URL).
			Err(err).
			Msg("strategy exhausted, falling back")
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &FetchError{Target: target.URL, LastStatus: lastStatus, Err: lastErr}
}
