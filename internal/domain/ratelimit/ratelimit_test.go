package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
)

func TestWindowBounds(t *testing.T) {
	window := time.Minute

	t.Run("same window yields same bucket", func(t *testing.T) {
		base := time.UnixMilli(1_700_000_040_000) // 40s into a minute window
		b1, reset1 := ratelimit.WindowBounds(base, window)
		b2, reset2 := ratelimit.WindowBounds(base.Add(10*time.Second), window)
		assert.Equal(t, b1, b2)
		assert.Equal(t, reset1, reset2)
	})

	t.Run("next window advances the bucket", func(t *testing.T) {
		base := time.UnixMilli(1_700_000_040_000)
		b1, _ := ratelimit.WindowBounds(base, window)
		b2, _ := ratelimit.WindowBounds(base.Add(time.Minute), window)
		assert.Equal(t, b1+1, b2)
	})

	t.Run("reset is the exact window edge", func(t *testing.T) {
		base := time.UnixMilli(1_700_000_040_000)
		_, resetAt := ratelimit.WindowBounds(base, window)
		assert.Equal(t, int64(0), resetAt.UnixMilli()%window.Milliseconds())
		assert.True(t, resetAt.After(base))
		assert.LessOrEqual(t, resetAt.Sub(base), window)
	})
}

func TestEvaluate(t *testing.T) {
	now := time.UnixMilli(1_700_000_040_000)
	resetAt := now.Add(20 * time.Second)

	t.Run("count at limit is allowed", func(t *testing.T) {
		res := ratelimit.Evaluate(10, 10, resetAt, now)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Equal(t, 0, res.RetryAfter)
	})

	t.Run("count over limit is denied with retry hint", func(t *testing.T) {
		res := ratelimit.Evaluate(11, 10, resetAt, now)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Equal(t, 20, res.RetryAfter)
	})

	t.Run("retry seconds round up", func(t *testing.T) {
		res := ratelimit.Evaluate(11, 10, now.Add(1500*time.Millisecond), now)
		assert.Equal(t, 2, res.RetryAfter)
	})

	t.Run("remaining never negative", func(t *testing.T) {
		res := ratelimit.Evaluate(50, 10, resetAt, now)
		assert.Equal(t, 0, res.Remaining)
	})

	t.Run("first request in window", func(t *testing.T) {
		res := ratelimit.Evaluate(1, 10, resetAt, now)
		assert.True(t, res.Allowed)
		assert.Equal(t, 9, res.Remaining)
	})
}
