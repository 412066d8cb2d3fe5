package ai

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/psychodetective/internal/domain"
)

// RetryPolicy configures retries of the primary provider.
type RetryPolicy struct {
	// MaxAttempts is the total number of primary attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles per retry.
	BaseDelay time.Duration

	// MaxDelay caps a single delay.
	MaxDelay time.Duration

	// RateLimitMultiplier stretches the delay after a rate-limit failure.
	RateLimitMultiplier float64
}

// DefaultRetryPolicy returns three attempts with one second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		BaseDelay:           time.Second,
		MaxDelay:            10 * time.Second,
		RateLimitMultiplier: 2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.RateLimitMultiplier < 1 {
		p.RateLimitMultiplier = 1
	}
	return p
}

// Delay returns the wait before retry number retry (1-based) after err.
// Rate-limited failures wait longer and honor the server's Retry-After.
func (p RetryPolicy) Delay(retry int, err error) time.Duration {
	if retry < 1 {
		retry = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(2, float64(retry-1))

	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Reason == domain.ReasonRateLimited {
		delay *= p.RateLimitMultiplier
		if after := float64(pe.RetryAfter); after > delay {
			delay = after
		}
	}

	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
