// Package admission implements the request-admission pipeline: the ordered
// chain of decisions between an authenticated inbound request and the
// forwarded orchestrator call.
package admission

import (
	"net/url"

	"github.com/mcs-platform/mcs-gateway/pkg/constants"
)

// RequestContext is the per-request admission state. It is created once the
// identity is established, advanced by pipeline stages, and owned exclusively
// by its request; it is never shared across flows.
type RequestContext struct {
	TenantID  string
	UserID    string
	Scopes    []string
	RequestID string

	// GraphName is set when the route carries a graph; empty for
	// graph-less endpoints such as platform metadata reads.
	GraphName string

	// GraphVersion is empty until the version-resolution stage runs. Once
	// set it is a member of the matching policy's version set.
	GraphVersion string
}

// RateLimitKey returns the fixed-window counter key for this request.
func (c *RequestContext) RateLimitKey() string {
	return c.TenantID + ":" + c.GraphName
}

// UpstreamHeaders builds the identity header set sent to the orchestrator.
func (c *RequestContext) UpstreamHeaders() map[string]string {
	headers := map[string]string{
		constants.HeaderRequestID: c.RequestID,
		constants.HeaderTenantID:  c.TenantID,
		constants.HeaderUserID:    c.UserID,
		constants.HeaderScopes:    joinScopes(c.Scopes),
	}
	if c.GraphName != "" {
		headers[constants.HeaderGraphName] = c.GraphName
	}
	if c.GraphVersion != "" {
		headers[constants.HeaderGraphVersion] = c.GraphVersion
	}
	return headers
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// Request carries everything the pipeline needs for one inbound request.
// The body is opaque and forwarded unmodified.
type Request struct {
	Context *RequestContext

	// RequestedVersion is the caller's explicit version choice, if any.
	RequestedVersion string

	Method       string
	UpstreamPath string
	Query        url.Values
	ContentType  string
	Traceparent  string
	Body         []byte
}
