package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/clearledger/reconcile-backend/pkg/config"
)

func fixedPolicy(maxAttempts int, base, max time.Duration) Policy {
	p := NewPolicy(config.RetryConfig{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: max})
	p.rand = rand.New(rand.NewSource(1))
	return p
}

func TestDelayGrowsExponentiallyWithinJitterBounds(t *testing.T) {
	p := fixedPolicy(5, 10*time.Second, 10*time.Minute)

	expected := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
	}
	for attempt, base := range expected {
		got := p.Delay(attempt + 1)
		lo := time.Duration(float64(base) * (1 - jitterFraction))
		hi := time.Duration(float64(base) * (1 + jitterFraction))
		if got < lo || got > hi {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt+1, got, lo, hi)
		}
	}
}

func TestDelayIsCapped(t *testing.T) {
	p := fixedPolicy(20, 10*time.Second, time.Minute)

	for i := 0; i < 50; i++ {
		got := p.Delay(15)
		hi := time.Duration(float64(time.Minute) * (1 + jitterFraction))
		if got > hi {
			t.Fatalf("capped delay %v exceeds max with jitter %v", got, hi)
		}
	}
}

func TestDelayClampsLowAttempts(t *testing.T) {
	p := fixedPolicy(5, 10*time.Second, 10*time.Minute)
	got := p.Delay(0)
	hi := time.Duration(float64(10*time.Second) * (1 + jitterFraction))
	if got > hi {
		t.Fatalf("attempt 0 should behave like attempt 1, got %v", got)
	}
}

func TestExhausted(t *testing.T) {
	p := fixedPolicy(5, time.Second, time.Minute)
	if p.Exhausted(4) {
		t.Fatalf("4 of 5 attempts is not exhausted")
	}
	if !p.Exhausted(5) {
		t.Fatalf("5 of 5 attempts is exhausted")
	}
	if !p.Exhausted(6) {
		t.Fatalf("over budget is exhausted")
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(config.RetryConfig{})
	if p.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", p.MaxAttempts)
	}
	if p.BaseDelay != defaultBaseDelay || p.MaxDelay != defaultMaxDelay {
		t.Fatalf("expected default delays, got %v %v", p.BaseDelay, p.MaxDelay)
	}
}

func TestNextRetryAt(t *testing.T) {
	p := fixedPolicy(5, 10*time.Second, 10*time.Minute)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	at := p.NextRetryAt(now, 1)
	if !at.After(now) {
		t.Fatalf("next retry must be in the future")
	}
	if at.Sub(now) > 13*time.Second {
		t.Fatalf("first retry too far out: %v", at.Sub(now))
	}
}
