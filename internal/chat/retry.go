package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError determines if an error should trigger a retry. Tool
// failures never reach this path: they are returned to the conversation as
// data, not errors.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors - always retry
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors - retry
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network errors - retry
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry runs one model call with rate limiting, circuit
// breaking and exponential backoff on transient errors.
func (o *Orchestrator) generateWithRetry(ctx context.Context, call func(context.Context) (*ai.ModelResponse, error)) (*ai.ModelResponse, error) {
	var lastErr error
	delay := o.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= o.retryConfig.MaxRetries; attempt++ {
		// Rate limit each attempt, not each call.
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		if err := o.breaker.Allow(); err != nil {
			return nil, err
		}

		resp, err := call(ctx)
		if err == nil {
			o.breaker.Success()
			o.logger.Debug("model call succeeded", "attempts", attempt+1, "elapsed", time.Since(start))
			return resp, nil
		}

		o.breaker.Failure()
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == o.retryConfig.MaxRetries {
			break
		}

		o.logger.Debug("retrying model call",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, o.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		o.retryConfig.MaxRetries, time.Since(start), lastErr)
}
