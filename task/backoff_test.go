package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelay(t *testing.T) {
	b := ExponentialBackoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.1}

	tests := []struct {
		attempt int
		rnd     float64
		want    time.Duration
	}{
		{attempt: 1, rnd: 0, want: 100 * time.Millisecond},
		{attempt: 2, rnd: 0, want: 200 * time.Millisecond},
		{attempt: 3, rnd: 0, want: 400 * time.Millisecond},
		{attempt: 3, rnd: 0.5, want: 420 * time.Millisecond},
		{attempt: 5, rnd: 0, want: time.Second},
		{attempt: 0, rnd: 0, want: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeDelay(b, tt.attempt, tt.rnd), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoff_DelayUsesRand(t *testing.T) {
	b := DefaultBackoff()
	b.Rand = func() float64 { return 1 }

	assert.Equal(t, 110*time.Millisecond, b.Delay(1))

	b.Rand = nil
	d := b.Delay(1)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.LessOrEqual(t, d, 110*time.Millisecond)
}

func TestConstantAndNoBackoff(t *testing.T) {
	assert.Equal(t, 3*time.Second, ConstantBackoff(3*time.Second).Delay(7))
	assert.Zero(t, NoBackoff().Delay(1))
}
