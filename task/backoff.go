package task

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed. Implementations must be pure apart
// from jitter so policies can be swapped and tested in isolation.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts a function to the Backoff interface.
type BackoffFunc func(attempt int) time.Duration

// Delay calls f(attempt).
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ExponentialBackoff grows the delay by Factor per attempt, adds up to
// Jitter*base random extra and clamps the result to Max.
type ExponentialBackoff struct {
	// Initial is the delay after the first failure.
	Initial time.Duration
	// Max caps every delay.
	Max time.Duration
	// Factor is the exponential factor applied to each attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to the backoff.
	Jitter float64
	// Rand returns values in [0.0, 1.0). Defaults to math/rand/v2.Float64.
	Rand func() float64
}

// DefaultBackoff returns a sensible default backoff policy.
// Initial: 100ms, Max: 10s, Factor: 2, Jitter: 10%
func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Initial: 100 * time.Millisecond,
		Max:     10 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// Delay implements Backoff.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	r := b.Rand
	if r == nil {
		r = rand.Float64
	}

	return ComputeDelay(b, attempt, r())
}

// ComputeDelay calculates the backoff for attempt using the provided random
// value in [0.0, 1.0). The formula is:
//
//	base   = Initial * Factor^(attempt-1)
//	jitter = base * Jitter * randomValue
//	delay  = min(Max, base + jitter)
func ComputeDelay(b ExponentialBackoff, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)

	factor := b.Factor
	if factor <= 0 {
		factor = 1
	}

	base := float64(b.Initial) * math.Pow(factor, exp)
	total := base + base*b.Jitter*randomValue

	if b.Max > 0 {
		total = math.Min(float64(b.Max), total)
	}

	return time.Duration(math.Round(total))
}

// ConstantBackoff waits the same duration before every retry.
type ConstantBackoff time.Duration

// Delay implements Backoff.
func (c ConstantBackoff) Delay(int) time.Duration { return time.Duration(c) }

// NoBackoff retries immediately.
func NoBackoff() Backoff { return ConstantBackoff(0) }
