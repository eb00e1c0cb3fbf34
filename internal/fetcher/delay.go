package fetcher

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay waits a uniformly random duration in [Min, Max] so request timing
// never settles into a fixed interval.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// NewDelay builds a delay from second bounds, swapping them if reversed.
func NewDelay(minSeconds, maxSeconds float64) Delay {
	d := Delay{
		Min: time.Duration(minSeconds * float64(time.Second)),
		Max: time.Duration(maxSeconds * float64(time.Second)),
	}
	if d.Min > d.Max {
		d.Min, d.Max = d.Max, d.Min
	}
	return d
}

// Next draws the next duration.
func (d Delay) Next() time.Duration {
	if d.Max <= d.Min {
		return max(d.Min, 0)
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Wait sleeps for Next() or until ctx is done.
func (d Delay) Wait(ctx context.Context) error {
	wait := d.Next()
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
