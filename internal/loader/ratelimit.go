package loader

import (
	"context"
	"sync"
	"time"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
)

// MinInterval wraps a Loader and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last
// call, or return early if the context is canceled.
type MinInterval struct {
	L        Loader
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.L.Name() }

func (m *MinInterval) Load(ctx context.Context, name string, from, to time.Time) (records.PriceSeries, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	series, err := m.L.Load(ctx, name, from, to)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return series, err
}
