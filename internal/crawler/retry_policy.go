package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"time"
)

// HTTPStatusError reports a fetch that completed with a failing status code.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// defaultRetryStatuses is the set of status codes worth retrying. 403 is
// included because the target host serves it from its anti-bot layer, not
// as a stable authorization decision.
var defaultRetryStatuses = map[int]struct{}{
	500: {}, 502: {}, 503: {}, 504: {}, 408: {}, 429: {}, 403: {},
}

// RetryPolicy implements jittered exponential backoff over a configured
// set of retryable HTTP statuses.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      time.Duration
	statuses    map[int]struct{}
}

// NewRetryPolicy builds a policy. Zero values fall back to defaults:
// 3 attempts, 3s base, 60s cap, 1s jitter.
func NewRetryPolicy(maxAttempts int, baseDelay, jitter time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 3 * time.Second
	}
	if jitter <= 0 {
		jitter = time.Second
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    60 * time.Second,
		jitter:      jitter,
		statuses:    defaultRetryStatuses,
	}
}

// ShouldRetry decides whether the error is retryable at the given attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		_, ok := p.statuses[statusErr.StatusCode]
		return ok
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns base * 2^attempt plus uniform jitter, capped.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay) + randomJitter(p.jitter)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
