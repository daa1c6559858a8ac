package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	domain "github.com/mcs-platform/mcs-gateway/internal/domain/proxy"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	gwerrors "github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

func newTestForwarder() *Forwarder {
	f := NewForwarder(logger.NewNoopLogger(), nil)
	f.backoffUnit = time.Millisecond
	return f
}

func routingFor(baseURL string, maxRetries int) policy.Routing {
	return policy.Routing{
		OrchestratorBaseURL: baseURL,
		TimeoutMs:           2000,
		Retry:               policy.RetryPolicy{Enabled: maxRetries > 0, MaxRetries: maxRetries},
	}
}

func TestForward_RelaysUpstreamResponse(t *testing.T) {
	var gotPath, gotTenant string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTenant = r.Header.Get(constants.HeaderTenantID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orchestration_id":"abc"}`))
	}))
	defer upstream.Close()

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
		Headers: map[string]string{
			constants.HeaderTenantID: "acme-corp",
		},
		Body: []byte(`{"input":{}}`),
	}, routingFor(upstream.URL, 0))

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"orchestration_id":"abc"}`, string(resp.Body))
	assert.Equal(t, "/v1/orchestrations/claims-triage/run", gotPath)
	assert.Equal(t, "acme-corp", gotTenant)
}

func TestForward_RetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`ok`))
	}))
	defer upstream.Close()

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
	}, routingFor(upstream.URL, 2))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestForward_SpentRetryBudgetRelaysFinalStatus(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"still down"}`))
	}))
	defer upstream.Close()

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
	}, routingFor(upstream.URL, 2))

	// The final 502 is passed through, not converted to a gateway error.
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestForward_NonTransientStatusNeverRetries(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
	}, routingFor(upstream.URL, 2))

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForward_RetryDisabledMakesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	routing := routingFor(upstream.URL, 0)
	routing.Retry = policy.RetryPolicy{Enabled: false, MaxRetries: 5}

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodGet,
		Path:   "/v1/platform/graphs",
	}, routing)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForward_StripsInternalResponseHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Internal-Routing", "node-7")
		w.Header().Set("x-mcs-debug", "trace")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	resp, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodGet,
		Path:   "/v1/platform/graphs",
	}, routingFor(upstream.URL, 0))

	require.NoError(t, err)
	assert.Empty(t, resp.Headers.Get("X-Internal-Routing"))
	assert.Empty(t, resp.Headers.Get("x-mcs-debug"))
	assert.Equal(t, "no-store", resp.Headers.Get("Cache-Control"))
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
}

func TestForward_TimeoutIsUpstreamUnavailable504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer upstream.Close()

	routing := routingFor(upstream.URL, 0)
	routing.TimeoutMs = 50

	_, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
	}, routing)

	require.Error(t, err)
	gwErr, ok := gwerrors.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeUpstreamUnavailable, gwErr.Code())
	assert.Equal(t, http.StatusGatewayTimeout, gwerrors.UpstreamStatus(gwErr))
}

func TestForward_ConnectionRefusedIsUpstreamUnavailable503(t *testing.T) {
	// Grab a port nothing listens on.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := upstream.URL
	upstream.Close()

	_, err := newTestForwarder().Forward(context.Background(), domain.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/v1/orchestrations/claims-triage/run",
	}, routingFor(baseURL, 2))

	require.Error(t, err)
	gwErr, ok := gwerrors.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeUpstreamUnavailable, gwErr.Code())
	assert.Equal(t, http.StatusServiceUnavailable, gwerrors.UpstreamStatus(gwErr))
}

func TestFilterResponseHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Anything", "dropped")
	h.Add("Vary", "Accept")
	h.Add("Vary", "Origin")

	filtered := filterResponseHeaders(h)
	assert.Empty(t, filtered.Get("X-Anything"))
	assert.Equal(t, "application/json", filtered.Get("Content-Type"))
	assert.Equal(t, []string{"Accept", "Origin"}, filtered.Values("Vary"))
}
