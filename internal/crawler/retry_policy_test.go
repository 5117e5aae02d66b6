package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return e.timeout }

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(3, time.Second, time.Second)

	t.Run("retryable status codes", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504, 408, 429, 403} {
			err := &HTTPStatusError{URL: "https://aoty.test/x", StatusCode: code}
			assert.True(t, policy.ShouldRetry(err, 0), "status %d", code)
		}
	})

	t.Run("non retryable status codes", func(t *testing.T) {
		for _, code := range []int{400, 401, 404, 410} {
			err := &HTTPStatusError{URL: "https://aoty.test/x", StatusCode: code}
			assert.False(t, policy.ShouldRetry(err, 0), "status %d", code)
		}
	})

	t.Run("attempts cap", func(t *testing.T) {
		err := &HTTPStatusError{StatusCode: 503}
		assert.True(t, policy.ShouldRetry(err, 2))
		assert.False(t, policy.ShouldRetry(err, 3))
	})

	t.Run("cancellation never retries", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(context.Canceled, 0))
		assert.False(t, policy.ShouldRetry(context.DeadlineExceeded, 0))
	})

	t.Run("network timeouts retry", func(t *testing.T) {
		assert.True(t, policy.ShouldRetry(&fakeNetError{timeout: true}, 0))
		assert.False(t, policy.ShouldRetry(&fakeNetError{timeout: false}, 0))
	})

	t.Run("unknown errors retry", func(t *testing.T) {
		assert.True(t, policy.ShouldRetry(errors.New("connection reset"), 0))
	})

	t.Run("nil error never retries", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(nil, 0))
	})
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := NewRetryPolicy(5, 2*time.Second, time.Second)

	t.Run("grows exponentially with jitter", func(t *testing.T) {
		for attempt, base := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
			delay := policy.Backoff(attempt)
			assert.GreaterOrEqual(t, delay, base, "attempt %d", attempt)
			assert.Less(t, delay, base+time.Second, "attempt %d", attempt)
		}
	})

	t.Run("caps at the maximum", func(t *testing.T) {
		delay := policy.Backoff(10)
		assert.Less(t, delay, 61*time.Second)
	})
}

func TestKeywordChallengeDetector(t *testing.T) {
	detector := NewChallengeDetector(nil)

	t.Run("detects interstitial markers", func(t *testing.T) {
		cases := []struct {
			title string
			body  string
		}{
			{"Just a moment...", "Checking your browser before accessing"},
			{"", "This request was blocked. Ray ID: 8abc"},
			{"Access Denied", ""},
			{"", "cloudflare"},
			{"", "Please verify you are a human"},
		}
		for _, tc := range cases {
			assert.True(t, detector.IsChallenge(tc.title, tc.body), "title=%q", tc.title)
		}
	})

	t.Run("passes real content", func(t *testing.T) {
		assert.False(t, detector.IsChallenge(
			"In Rainbows by Radiohead",
			"<html><h1>In Rainbows</h1></html>",
		))
	})

	t.Run("custom keywords replace defaults", func(t *testing.T) {
		custom := NewChallengeDetector([]string{"robot check"})
		assert.True(t, custom.IsChallenge("Robot Check", ""))
		assert.False(t, custom.IsChallenge("", "cloudflare"))
	})
}
