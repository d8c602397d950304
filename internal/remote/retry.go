package remote

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

const defaultMaxBackoff = 10 * time.Second

// RetryConfig controls retries of idempotent reads.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (rc RetryConfig) withDefaults() RetryConfig {
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.InitialBackoff <= 0 {
		rc.InitialBackoff = 500 * time.Millisecond
	}
	if rc.MaxBackoff <= 0 {
		rc.MaxBackoff = defaultMaxBackoff
	}
	return rc
}

// backoff returns InitialBackoff * 2^attempt, capped at MaxBackoff.
func (rc RetryConfig) backoff(attempt int) time.Duration {
	d := float64(rc.InitialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(rc.MaxBackoff) {
		d = float64(rc.MaxBackoff)
	}
	return time.Duration(d)
}

// statusError carries the HTTP status of a failed call. Code 0 marks a
// transport failure.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func retryableStatus(code int) bool {
	switch code {
	case 0,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryable reports whether a failed read is worth repeating.
func retryable(err error) bool {
	var se *statusError
	return errors.As(err, &se) && retryableStatus(se.code)
}

// withRetry runs fn until it succeeds, fails permanently, or runs out of attempts.
func (c *Client) withRetry(ctx context.Context, op string, fn func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		data, err := fn()
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == c.retry.MaxRetries || !retryable(err) || ctx.Err() != nil {
			break
		}

		wait := c.retry.backoff(attempt)
		c.logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
