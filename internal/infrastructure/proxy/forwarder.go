// Package proxy implements the orchestrator-facing HTTP forwarder.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	domain "github.com/mcs-platform/mcs-gateway/internal/domain/proxy"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	gwerrors "github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// AttemptRecorder receives upstream attempt outcomes. Satisfied by
// monitoring.Metrics.
type AttemptRecorder interface {
	RecordUpstreamAttempt(status int, retried bool, duration time.Duration)
}

// Forwarder issues outbound requests to the orchestrator with bounded
// linear-backoff retry on transient upstream statuses.
//
// Failure classes are kept apart: an upstream-returned status, however bad,
// is relayed verbatim once the retry budget is spent; only transport-level
// failures surface as UPSTREAM_UNAVAILABLE (504 inside the envelope for a
// timeout, 503 for refused connections and DNS failures).
type Forwarder struct {
	client   *http.Client
	logger   logger.Logger
	recorder AttemptRecorder

	// backoffUnit is the linear backoff base; attempt n waits n units.
	backoffUnit time.Duration
}

// NewForwarder creates a forwarder. The per-attempt timeout comes from the
// routing configuration on each call, so the shared client carries none.
func NewForwarder(log logger.Logger, recorder AttemptRecorder) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      log.WithComponent("forwarder"),
		recorder:    recorder,
		backoffUnit: constants.RetryBackoffUnit,
	}
}

// Forward implements proxy.Forwarder.
func (f *Forwarder) Forward(ctx context.Context, req domain.ForwardRequest, routing policy.Routing) (*domain.ForwardResponse, error) {
	timeout := constants.DefaultUpstreamTimeout
	if routing.TimeoutMs > 0 {
		timeout = time.Duration(routing.TimeoutMs) * time.Millisecond
	}

	maxAttempts := 1
	if routing.Retry.Enabled {
		maxAttempts = routing.Retry.MaxRetries + 1
	}

	targetURL := strings.TrimSuffix(routing.OrchestratorBaseURL, "/") + req.Path
	if len(req.Query) > 0 {
		targetURL += "?" + req.Query.Encode()
	}

	var resp *domain.ForwardResponse
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		var err error
		resp, err = f.attempt(ctx, req, targetURL, timeout)
		if err != nil {
			// Transport failure: nothing came back, so there is nothing to
			// pass through and nothing worth retrying against.
			if f.recorder != nil {
				f.recorder.RecordUpstreamAttempt(0, attempt > 1, time.Since(start))
			}
			return nil, err
		}

		if f.recorder != nil {
			f.recorder.RecordUpstreamAttempt(resp.Status, attempt > 1, time.Since(start))
		}

		if !constants.RetryableStatuses[resp.Status] || attempt == maxAttempts {
			return resp, nil
		}

		delay := time.Duration(attempt) * f.backoffUnit
		f.logger.Warn(ctx, "Transient upstream status, retrying",
			logger.Int("status", resp.Status),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return resp, nil
		case <-time.After(delay):
		}
	}

	return resp, nil
}

func (f *Forwarder) attempt(ctx context.Context, req domain.ForwardRequest, targetURL string, timeout time.Duration) (*domain.ForwardResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, targetURL, body)
	if err != nil {
		return nil, gwerrors.ErrInternal("failed to build upstream request").WithCause(err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &domain.ForwardResponse{
		Status:  httpResp.StatusCode,
		Headers: filterResponseHeaders(httpResp.Header),
		Body:    respBody,
	}, nil
}

// classifyTransportError maps a transport failure to UPSTREAM_UNAVAILABLE:
// timeouts carry upstream status 504, everything else (refused connection,
// DNS failure) carries 503.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return gwerrors.ErrUpstreamUnavailable("Upstream request timeout", http.StatusGatewayTimeout).WithCause(err)
	}
	return gwerrors.ErrUpstreamUnavailable("Upstream service unavailable", http.StatusServiceUnavailable).WithCause(err)
}

// filterResponseHeaders drops headers with the internal-use prefix. A custom
// caller-visible header carrying that prefix is dropped too; accepted.
func filterResponseHeaders(h http.Header) http.Header {
	filtered := make(http.Header, len(h))
	for k, vals := range h {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(constants.InternalHeaderPrefix)) {
			continue
		}
		for _, v := range vals {
			filtered.Add(k, v)
		}
	}
	return filtered
}
