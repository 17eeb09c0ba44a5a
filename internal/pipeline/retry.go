package pipeline

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// RetryPolicy decides whether and when a failed stage attempt is retried.
// Transient failures back off exponentially with jitter; rate-limited
// failures wait a long fixed delay and get a smaller attempt cap so a single
// run's latency stays bounded.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RateLimitDelay    time.Duration
	RateLimitAttempts int
}

// DefaultRetryPolicy builds a policy with sane defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		RateLimitDelay:    60 * time.Second,
		RateLimitAttempts: 2,
	}
}

// ShouldRetry decides whether another attempt follows the given failure.
// attempt is the number of attempts already made (1-based).
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindPermanent:
		return false
	case KindRateLimited:
		return attempt < p.RateLimitAttempts
	default:
		return attempt < p.MaxAttempts
	}
}

// Backoff returns the wait duration before the next attempt.
func (p RetryPolicy) Backoff(err error, attempt int) time.Duration {
	if KindOf(err) == KindRateLimited {
		return p.RateLimitDelay
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
