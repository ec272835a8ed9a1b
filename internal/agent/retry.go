package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for oracle calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// String matching because provider SDKs do not expose typed errors for
// transient failures. Re-evaluate if that changes.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry calls the oracle with exponential backoff. Each attempt
// waits on the rate limiter, including retries.
func (o *Orchestrator) generateWithRetry(ctx context.Context, req Request) (*Reply, error) {
	var lastErr error
	delay := o.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= o.retry.MaxRetries; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		reply, err := o.oracle.Generate(ctx, req)
		if err == nil {
			o.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return reply, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		if attempt == o.retry.MaxRetries {
			break
		}

		o.logger.Debug("retrying generation",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, o.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: after %d retries (elapsed %v): %v",
		ErrGeneration, o.retry.MaxRetries, time.Since(start), lastErr)
}
