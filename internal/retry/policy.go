package retry

import (
	"math/rand"
	"time"

	"github.com/clearledger/reconcile-backend/pkg/config"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Second
	defaultMaxDelay    = 10 * time.Minute

	// jitterFraction spreads retries ±25% around the exponential delay so a
	// burst of failures does not come back as a burst of retries.
	jitterFraction = 0.25
)

// Policy decides when a failed payment event runs again and when it stops
// trying altogether.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	rand *rand.Rand
}

// NewPolicy builds a policy from config, falling back to safe defaults for
// unset values.
func NewPolicy(cfg config.RetryConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Exhausted reports whether the attempt budget is used up.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Delay returns the backoff before the next run after the given number of
// failed attempts (1-based). The exponential curve is capped at MaxDelay and
// jittered.
func (p Policy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return p.jitter(delay)
}

// NextRetryAt applies Delay relative to now.
func (p Policy) NextRetryAt(now time.Time, attempts int) time.Time {
	return now.Add(p.Delay(attempts))
}

func (p Policy) jitter(delay time.Duration) time.Duration {
	span := float64(delay) * jitterFraction
	offset := (p.randFloat()*2 - 1) * span
	jittered := time.Duration(float64(delay) + offset)
	if jittered < 0 {
		return 0
	}
	return jittered
}

func (p Policy) randFloat() float64 {
	if p.rand != nil {
		return p.rand.Float64()
	}
	return rand.Float64()
}
