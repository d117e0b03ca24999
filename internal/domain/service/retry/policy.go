package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

// Config holds the retry policy parameters. It is pure configuration and
// immutable for the lifetime of a harness run.
type Config struct {
	MaxRetries          int                     `yaml:"max_retries"`
	BaseDelaySeconds    float64                 `yaml:"base_delay_seconds"`
	MaxDelaySeconds     float64                 `yaml:"max_delay_seconds"`
	ExponentialBase     float64                 `yaml:"exponential_base"`
	JitterFactor        float64                 `yaml:"jitter_factor"`
	RetryableCategories []session.ErrorCategory `yaml:"retryable_categories"`
}

// DefaultConfig returns the retry parameters used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxRetries:       5,
		BaseDelaySeconds: 5,
		MaxDelaySeconds:  300,
		ExponentialBase:  2,
		JitterFactor:     0.2,
		RetryableCategories: []session.ErrorCategory{
			session.CategoryTransient,
			session.CategoryRateLimit,
			session.CategorySDKCrash,
		},
	}
}

// Policy computes retry decisions and backoff delays from an error
// category and attempt count.
type Policy struct {
	config Config
	rng    *rand.Rand
}

// NewPolicy creates a policy with a time-seeded jitter source
func NewPolicy(config Config) *Policy {
	return NewPolicyWithSeed(config, time.Now().UnixNano())
}

// NewPolicyWithSeed creates a policy with a fixed jitter seed. Given the
// same seed the computed delays are deterministic, which tests rely on.
func NewPolicyWithSeed(config Config, seed int64) *Policy {
	return &Policy{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Config returns the policy's configuration
func (p *Policy) Config() Config {
	return p.config
}

// Delay computes the backoff before retry number attempt (0-based):
// min(max_delay, base_delay * exponential_base^attempt) with symmetric
// jitter of ±jitter_factor, clamped to be non-negative.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	seconds := p.config.BaseDelaySeconds * math.Pow(p.config.ExponentialBase, float64(attempt))
	if seconds > p.config.MaxDelaySeconds {
		seconds = p.config.MaxDelaySeconds
	}

	if p.config.JitterFactor > 0 {
		// Symmetric jitter in [-jitterFactor, +jitterFactor]
		jitter := (p.rng.Float64()*2 - 1) * p.config.JitterFactor
		seconds *= 1 + jitter
	}
	if seconds < 0 {
		seconds = 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// ShouldRetry decides whether a failed session should be re-attempted.
// Successful sessions and handoffs are never retried; they are not
// failures. BILLING and AUTH are never retried. UNKNOWN errors get exactly
// one free retry on the first attempt and then give up, which avoids
// infinite loops on persistently misclassified errors.
func (p *Policy) ShouldRetry(result *session.Result, attempt int) bool {
	if attempt >= p.config.MaxRetries {
		return false
	}
	if result == nil {
		return false
	}
	if result.Success || result.HandoffRequested {
		return false
	}

	for _, cat := range p.config.RetryableCategories {
		if result.ErrorCategory == cat {
			return true
		}
	}

	if result.ErrorCategory == session.CategoryUnknown && attempt == 0 {
		return true
	}

	return false
}
