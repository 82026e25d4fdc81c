package provider

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy bounds how many times a driver retries RateLimitedError,
// TransientError and TimeoutError before propagating them (spec.md §4.2: "retried up to N
// times with exponential backoff capped at B seconds; all other failures
// propagate immediately").
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the teacher's own default retry posture
// (internal/llm/openai/config.go: MaxRetries default 1) scaled up slightly
// since Zen drivers face third-party rate limits more often than the
// teacher's single fixed endpoint did.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// backoffDelay returns the delay before attempt N (0-indexed), exponential
// with a hard cap, honoring a provider-reported Retry-After in seconds when
// present.
func (p RetryPolicy) backoffDelay(attempt int, retryAfterSeconds int) time.Duration {
	if retryAfterSeconds > 0 {
		d := time.Duration(retryAfterSeconds) * time.Second
		if d > p.MaxDelay {
			return p.MaxDelay
		}
		return d
	}
	d := p.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// WithRetry calls fn, retrying on RateLimitedError/TransientError/TimeoutError
// according to policy. Backoff sleeps are explicit scheduled suspensions (spec.md §9
// design note — "Backoff sleeps are explicit scheduled suspensions") built
// on rate.Limiter.WaitN rather than a bare time.Sleep, so a context
// cancellation during the wait returns immediately instead of blocking the
// suspension point.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (Response, error)) (Response, error) {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var rl *RateLimitedError
		var tr *TransientError
		var to *TimeoutError
		retryAfter := 0
		switch {
		case errors.As(err, &rl):
			retryAfter = rl.RetryAfter
		case errors.As(err, &tr), errors.As(err, &to):
			// no Retry-After hint
		default:
			return Response{}, err // non-retryable, propagate immediately
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.backoffDelay(attempt, retryAfter)
		log.Printf("[Provider] retryable error (attempt %d/%d), backing off %v: %v", attempt+1, policy.MaxAttempts, delay, err)

		limiter := rate.NewLimiter(rate.Every(delay), 1)
		// Consume the initial burst token immediately so WaitN blocks for
		// exactly one `delay` interval, then return on ctx cancellation.
		limiter.Allow()
		if werr := limiter.WaitN(ctx, 1); werr != nil {
			return Response{}, werr
		}
	}
	return Response{}, lastErr
}
