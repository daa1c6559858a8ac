// Package proxy defines the forwarding contract between the admission
// pipeline and the orchestrator-facing forwarder.
package proxy

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
)

// ForwardRequest describes one outbound request to the orchestrator. The
// body is opaque: the gateway never parses or transforms the payload.
type ForwardRequest struct {
	Method string
	// Path is the orchestrator-side target path, appended to the routing
	// base URL.
	Path string
	// Query parameters, forwarded verbatim.
	Query url.Values
	// Headers to send upstream: the identity header set plus Content-Type
	// and trace propagation.
	Headers map[string]string
	// Body is the unmodified inbound payload.
	Body []byte
}

// ForwardResponse is the upstream response relayed to the caller. Headers
// are already filtered of internal-use entries.
type ForwardResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Forwarder issues the outbound call with the retry and timeout policy of
// the supplied routing configuration. Any upstream-returned status, 4xx and
// 5xx included, produces a ForwardResponse; only transport-level failures
// (no response at all) produce an error.
type Forwarder interface {
	Forward(ctx context.Context, req ForwardRequest, routing policy.Routing) (*ForwardResponse, error)
}
