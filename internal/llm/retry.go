package llm

import (
	"context"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/observability"
)

// Retrying wraps a Generator with bounded exponential backoff. Only errors
// marked retryable are attempted again.
type Retrying struct {
	inner      Generator
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRetrying(inner Generator, maxRetries int, baseDelay time.Duration) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	return &Retrying{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepContext,
	}
}

func (r *Retrying) Generate(ctx context.Context, messages []Message) (string, error) {
	var lastErr error
	delay := r.baseDelay
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			observability.IncrementGenerationRetry()
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}
		content, err := r.inner.Generate(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	observability.IncrementGenerationFailure()
	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
