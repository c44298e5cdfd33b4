package remote

import (
	"math"
	"time"
)

// policy is an exponential backoff: base·2^n for the n-th retry, capped at
// max, plus a non-negative jitter below jitter·wait, and never shorter than
// spacing. It implements backoff.BackOff.
type policy struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	spacing time.Duration
	random  func() float64

	attempt int
}

func (p *policy) NextBackOff() time.Duration {
	wait := p.exponential()
	if p.max > 0 && wait > p.max {
		wait = p.max
	}
	if p.jitter > 0 && p.random != nil {
		wait += time.Duration(p.jitter * p.random() * float64(wait))
		if wait < 0 {
			wait = time.Duration(math.MaxInt64)
		}
	}
	if wait < p.spacing {
		wait = p.spacing
	}

	p.attempt++
	return wait
}

func (p *policy) Reset() {
	p.attempt = 0
}

func (p *policy) exponential() time.Duration {
	f := float64(p.base) * math.Pow(2, float64(p.attempt))
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}
