package worker

import (
	"math/rand"
	"time"
)

// RetryPolicy schedules redelivery of failed sheet-sync tasks. The delay
// grows by BackoffFactor per attempt from InitialDelay up to MaxDelay, with
// up to Jitter added so workers recovering from a sheets outage do not
// redeliver in lockstep.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        time.Duration
}

// NextDelay returns the wait before redelivering attempt (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	grown := float64(base)
	for i := 1; i < attempt; i++ {
		grown *= factor
		if r.MaxDelay > 0 && grown >= float64(r.MaxDelay) {
			grown = float64(r.MaxDelay)
			break
		}
	}

	delay := time.Duration(grown)
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	if delay <= 0 {
		delay = base
	}
	if r.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(r.Jitter)))
	}
	return delay
}
