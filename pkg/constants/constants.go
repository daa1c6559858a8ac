// Package constants defines shared constants for the MCS Gateway:
// header names, context keys, stable error codes, and default values.
package constants

import "time"

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	// HeaderRequestID carries the per-request correlation identifier.
	// Honored when supplied by the caller, generated otherwise, always echoed.
	HeaderRequestID = "X-Request-Id"

	// HeaderTenantID identifies the tenant on upstream requests.
	HeaderTenantID = "X-MCS-Tenant-Id"

	// HeaderUserID identifies the authenticated subject on upstream requests.
	HeaderUserID = "X-MCS-User-Id"

	// HeaderScopes carries the comma-joined scope set on upstream requests.
	HeaderScopes = "X-MCS-Scopes"

	// HeaderGraphName carries the resolved graph name on upstream requests.
	HeaderGraphName = "X-MCS-Graph-Name"

	// HeaderGraphVersion carries the resolved graph version on upstream
	// requests. On inbound requests it selects an explicit version.
	HeaderGraphVersion = "X-MCS-Graph-Version"

	// HeaderTraceparent is the W3C trace propagation header, passed through
	// to the orchestrator unmodified when present.
	HeaderTraceparent = "traceparent"

	// HeaderRateLimitLimit reports the window limit for the resolved graph.
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining reports the remaining quota in the window.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset reports the window end as an ISO-8601 timestamp.
	HeaderRateLimitReset = "X-RateLimit-Reset"

	// HeaderRetryAfter reports seconds until the window resets on denial.
	HeaderRetryAfter = "Retry-After"
)

// InternalHeaderPrefix marks upstream response headers that are for internal
// routing use and must not be relayed to callers.
const InternalHeaderPrefix = "X-"

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for values stored in a request context.
type ContextKey string

const (
	// ContextKeyRequestID holds the request correlation identifier.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTenantID holds the authenticated tenant identifier.
	ContextKeyTenantID ContextKey = "tenant_id"

	// ContextKeyUserID holds the authenticated subject identifier.
	ContextKeyUserID ContextKey = "user_id"

	// ContextKeyGraphName holds the graph name once derived from the path.
	ContextKeyGraphName ContextKey = "graph_name"
)

// GinContextIdentity is the gin context key under which the auth middleware
// stores the validated identity record.
const GinContextIdentity = "mcs_identity"

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode is a stable, caller-visible error identifier.
type ErrorCode string

const (
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken        ErrorCode = "INVALID_TOKEN"
	ErrCodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
	ErrCodeVersionNotAllowed   ErrorCode = "VERSION_NOT_ALLOWED"
	ErrCodeInsufficientScope   ErrorCode = "INSUFFICIENT_SCOPE"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// ================================================================================
// Log Levels
// ================================================================================

// LogLevel represents a logging severity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// ================================================================================
// Defaults
// ================================================================================

const (
	// RateLimitWindow is the fixed-window length for per-graph quotas.
	RateLimitWindow = time.Minute

	// RateLimitKeyPrefix prefixes distributed counter keys.
	RateLimitKeyPrefix = "ratelimit"

	// RedisCheckTimeout bounds a single distributed counter round trip,
	// independent of the overall request timeout.
	RedisCheckTimeout = 250 * time.Millisecond

	// RetryBackoffUnit is the unit of the linear inter-attempt proxy delay:
	// the wait between attempt n and n+1 is n * RetryBackoffUnit.
	RetryBackoffUnit = time.Second

	// DefaultUpstreamTimeout applies when the policy document carries no
	// routing timeout.
	DefaultUpstreamTimeout = 30 * time.Second

	// APIPrefix is the public route prefix of the gateway.
	APIPrefix = "/api/mcs/v1"

	// ServiceName identifies this service in logs, traces, and health output.
	ServiceName = "mcs-gateway"
)

// Retryable upstream statuses for the proxy forwarder.
var RetryableStatuses = map[int]bool{
	502: true,
	503: true,
	504: true,
}
