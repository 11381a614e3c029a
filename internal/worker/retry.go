package worker

import (
	"math"
	"time"
)

// RetryPolicy controls how failed deliveries are rescheduled: exponential
// backoff from InitialDelay, capped at MaxDelay, giving up after MaxRetries.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the backoff before the given attempt (1-based).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	switch {
	case p.MaxDelay > 0 && d > p.MaxDelay:
		return p.MaxDelay
	case d <= 0:
		return time.Second
	}
	return d
}
