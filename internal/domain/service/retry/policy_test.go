package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

func zeroJitterConfig() Config {
	cfg := DefaultConfig()
	cfg.JitterFactor = 0
	return cfg
}

func TestDelay_ExponentialGrowthWithoutJitter(t *testing.T) {
	cfg := zeroJitterConfig()
	cfg.BaseDelaySeconds = 2
	cfg.ExponentialBase = 2
	cfg.MaxDelaySeconds = 1000
	p := NewPolicyWithSeed(cfg, 42)

	// Each attempt doubles the previous delay until the cap
	prev := p.Delay(0)
	assert.Equal(t, 2*time.Second, prev)
	for attempt := 1; attempt < 8; attempt++ {
		d := p.Delay(attempt)
		assert.Equal(t, prev*2, d, "attempt %d", attempt)
		prev = d
	}
}

func TestDelay_CappedAtMax(t *testing.T) {
	cfg := zeroJitterConfig()
	cfg.BaseDelaySeconds = 10
	cfg.ExponentialBase = 10
	cfg.MaxDelaySeconds = 60
	p := NewPolicyWithSeed(cfg, 1)

	for attempt := 1; attempt < 10; attempt++ {
		assert.Equal(t, 60*time.Second, p.Delay(attempt), "attempt %d", attempt)
	}
}

func TestDelay_JitterBoundsAndDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelaySeconds = 10
	cfg.JitterFactor = 0.5
	cfg.MaxDelaySeconds = 10000

	a := NewPolicyWithSeed(cfg, 7)
	b := NewPolicyWithSeed(cfg, 7)

	for attempt := 0; attempt < 6; attempt++ {
		da := a.Delay(attempt)
		db := b.Delay(attempt)
		assert.Equal(t, da, db, "same seed must give same delay")

		base := 10 * math.Pow(cfg.ExponentialBase, float64(attempt))
		if base > cfg.MaxDelaySeconds {
			base = cfg.MaxDelaySeconds
		}
		lo := time.Duration(base * 0.5 * float64(time.Second))
		hi := time.Duration(base * 1.5 * float64(time.Second))
		assert.GreaterOrEqual(t, da, lo)
		assert.LessOrEqual(t, da, hi)
		assert.GreaterOrEqual(t, da, time.Duration(0))
	}
}

func TestShouldRetry_SuccessNeverRetried(t *testing.T) {
	p := NewPolicyWithSeed(DefaultConfig(), 1)
	result := &session.Result{Success: true, ErrorCategory: session.CategoryTransient}

	for attempt := 0; attempt < 5; attempt++ {
		assert.False(t, p.ShouldRetry(result, attempt), "attempt %d", attempt)
	}
}

func TestShouldRetry_HandoffNeverRetried(t *testing.T) {
	p := NewPolicyWithSeed(DefaultConfig(), 1)
	result := &session.Result{HandoffRequested: true}
	assert.False(t, p.ShouldRetry(result, 0))
}

func TestShouldRetry_FatalCategoriesNeverRetried(t *testing.T) {
	p := NewPolicyWithSeed(DefaultConfig(), 1)

	for _, cat := range []session.ErrorCategory{session.CategoryBilling, session.CategoryAuth} {
		result := &session.Result{ErrorMessage: "boom", ErrorCategory: cat}
		assert.False(t, p.ShouldRetry(result, 0), "category %s", cat)
	}
}

func TestShouldRetry_RetryableCategories(t *testing.T) {
	p := NewPolicyWithSeed(DefaultConfig(), 1)

	retryable := []session.ErrorCategory{
		session.CategoryTransient,
		session.CategoryRateLimit,
		session.CategorySDKCrash,
	}
	for _, cat := range retryable {
		result := &session.Result{ErrorMessage: "boom", ErrorCategory: cat}
		assert.True(t, p.ShouldRetry(result, 0), "category %s", cat)
		assert.True(t, p.ShouldRetry(result, 3), "category %s mid-run", cat)
	}
}

func TestShouldRetry_UnknownGetsOneFreeRetry(t *testing.T) {
	p := NewPolicyWithSeed(DefaultConfig(), 1)
	result := &session.Result{ErrorMessage: "mystery", ErrorCategory: session.CategoryUnknown}

	assert.True(t, p.ShouldRetry(result, 0), "first attempt gets a free retry")
	assert.False(t, p.ShouldRetry(result, 1), "second attempt gives up")
	assert.False(t, p.ShouldRetry(result, 2))
}

func TestShouldRetry_MaxRetriesExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	p := NewPolicyWithSeed(cfg, 1)
	result := &session.Result{ErrorMessage: "timeout", ErrorCategory: session.CategoryTransient}

	assert.True(t, p.ShouldRetry(result, 2))
	assert.False(t, p.ShouldRetry(result, 3))
	assert.False(t, p.ShouldRetry(result, 10))
}
