package ratelimit

import (
	"context"
	"time"

	domain "github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// FallbackRecorder receives a signal whenever a check degrades from the
// distributed store to the in-process one. Satisfied by monitoring.Metrics.
type FallbackRecorder interface {
	RecordLimiterFallback()
}

// Limiter is the dual-backend fixed-window rate limiter. The distributed
// store is preferred when configured; any error from it degrades that single
// check to the in-process store. A store outage therefore never rejects or
// crashes a request, it only narrows counter consistency from shared-across-
// instances to local-to-this-instance.
type Limiter struct {
	primary  domain.Store // nil when no distributed store is configured
	fallback domain.Store
	logger   logger.Logger
	recorder FallbackRecorder
}

// NewLimiter creates a limiter. primary may be nil, in which case every
// check runs on the in-process store.
func NewLimiter(primary domain.Store, log logger.Logger, recorder FallbackRecorder) *Limiter {
	return &Limiter{
		primary:  primary,
		fallback: NewMemoryStore(),
		logger:   log.WithComponent("rate_limiter"),
		recorder: recorder,
	}
}

// Check evaluates the fixed-window quota for key. It never fails: the
// in-process fallback absorbs distributed-store errors.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) domain.Result {
	if l.primary != nil {
		res, err := l.primary.Check(ctx, key, limit, window)
		if err == nil {
			return res
		}
		l.logger.Warn(ctx, "Distributed counter store unavailable, using in-process fallback",
			logger.String("key", key),
			logger.Error(err),
		)
		if l.recorder != nil {
			l.recorder.RecordLimiterFallback()
		}
	}

	res, _ := l.fallback.Check(ctx, key, limit, window)
	return res
}
