package login

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays between polls: Initial * Factor^(n-1), capped at Max, with
// up to Jitter (a fraction) of random spread either side.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// Delay returns the un-jittered delay after attempt n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Initial) * math.Pow(factor, float64(n-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Next returns [Backoff.Delay] with jitter applied. rnd must return values in [0, 1).
func (b Backoff) Next(n int, rnd func() float64) time.Duration {
	d := b.Delay(n)
	if b.Jitter <= 0 || rnd == nil {
		return d
	}
	spread := (rnd()*2 - 1) * b.Jitter
	return time.Duration(float64(d) * (1 + spread))
}

func defaultRand() float64 { return rand.Float64() }
