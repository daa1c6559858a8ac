// Package errors defines the structured error types of the MCS Gateway.
// Every terminal pipeline failure is one of these, carrying a stable error
// code and the HTTP status it maps to; the transport boundary renders them
// into the JSON response envelope exactly once.
package errors

import (
	"fmt"
	"net/http"

	"github.com/mcs-platform/mcs-gateway/pkg/constants"
)

// ================================================================================
// GatewayError Interface
// ================================================================================

// GatewayError is a structured error with a stable caller-visible code.
type GatewayError interface {
	error

	// Code returns the stable error code.
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status the error maps to.
	HTTPStatus() int

	// Reason returns the human-readable reason string for the envelope.
	Reason() string

	// Unwrap returns the underlying cause, if any.
	Unwrap() error

	// WithCause attaches a cause error.
	WithCause(cause error) GatewayError

	// WithMetadata attaches context metadata for logging.
	WithMetadata(key string, value interface{}) GatewayError

	// Metadata returns all attached metadata.
	Metadata() map[string]interface{}
}

type baseError struct {
	code       constants.ErrorCode
	httpStatus int
	reason     string
	cause      error
	metadata   map[string]interface{}
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.reason)
}

func (e *baseError) Code() constants.ErrorCode { return e.code }
func (e *baseError) HTTPStatus() int           { return e.httpStatus }
func (e *baseError) Reason() string            { return e.reason }
func (e *baseError) Unwrap() error             { return e.cause }

func (e *baseError) WithCause(cause error) GatewayError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) GatewayError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} { return e.metadata }

// New creates a GatewayError with the given code, status, and reason.
func New(code constants.ErrorCode, httpStatus int, reason string) GatewayError {
	return &baseError{
		code:       code,
		httpStatus: httpStatus,
		reason:     reason,
	}
}

// ================================================================================
// Constructors
// ================================================================================

// ErrUnauthorized reports a missing identity.
func ErrUnauthorized(reason string) GatewayError {
	if reason == "" {
		reason = "Unauthorized"
	}
	return New(constants.ErrCodeUnauthorized, http.StatusUnauthorized, reason)
}

// ErrInvalidToken reports a malformed or expired credential.
func ErrInvalidToken(reason string) GatewayError {
	if reason == "" {
		reason = "Invalid token"
	}
	return New(constants.ErrCodeInvalidToken, http.StatusUnauthorized, reason)
}

// ErrGraphNotAllowed reports an entitlement failure for a (tenant, graph) pair.
func ErrGraphNotAllowed(graphName, tenantID string) GatewayError {
	return New(
		constants.ErrCodePermissionDenied,
		http.StatusForbidden,
		fmt.Sprintf("Graph '%s' is not allowed for tenant '%s'", graphName, tenantID),
	).WithMetadata("graph_name", graphName).
		WithMetadata("tenant_id", tenantID)
}

// ErrVersionNotAllowed reports a version outside the entitled set.
func ErrVersionNotAllowed(graphName, version, tenantID string) GatewayError {
	return New(
		constants.ErrCodeVersionNotAllowed,
		http.StatusForbidden,
		fmt.Sprintf("Version '%s' of graph '%s' is not allowed for tenant '%s'", version, graphName, tenantID),
	).WithMetadata("graph_name", graphName).
		WithMetadata("graph_version", version).
		WithMetadata("tenant_id", tenantID)
}

// ErrInsufficientScopes reports a scope-subset failure.
func ErrInsufficientScopes(required, provided []string) GatewayError {
	return New(
		constants.ErrCodeInsufficientScope,
		http.StatusForbidden,
		fmt.Sprintf("Required scopes: %v, provided: %v", required, provided),
	).WithMetadata("required_scopes", required).
		WithMetadata("provided_scopes", provided)
}

// ErrRateLimited reports an exhausted fixed-window quota. retryAfter is the
// number of seconds until the window resets.
func ErrRateLimited(key string, retryAfter int) GatewayError {
	return New(
		constants.ErrCodeRateLimited,
		http.StatusTooManyRequests,
		fmt.Sprintf("Rate limit exceeded for %s", key),
	).WithMetadata("key", key).
		WithMetadata("retry_after", retryAfter)
}

// ErrNotFound reports an unknown resource or route.
func ErrNotFound(reason string) GatewayError {
	if reason == "" {
		reason = "Not found"
	}
	return New(constants.ErrCodeNotFound, http.StatusNotFound, reason)
}

// ErrUpstreamUnavailable reports a transport-level forwarding failure.
// upstreamStatus is 504 for connect/read timeouts and 503 for any other
// transport failure; it is carried in the envelope, not used as the
// response status (the gateway answers 502).
func ErrUpstreamUnavailable(reason string, upstreamStatus int) GatewayError {
	if reason == "" {
		reason = "Upstream service unavailable"
	}
	return New(constants.ErrCodeUpstreamUnavailable, http.StatusBadGateway, reason).
		WithMetadata("upstream_status", upstreamStatus)
}

// ErrInternal reports an unexpected gateway-side failure.
func ErrInternal(reason string) GatewayError {
	if reason == "" {
		reason = "An internal error occurred"
	}
	return New(constants.ErrCodeInternalError, http.StatusInternalServerError, reason)
}

// ================================================================================
// Inspection Helpers
// ================================================================================

// AsGatewayError attempts to cast an error to GatewayError.
func AsGatewayError(err error) (GatewayError, bool) {
	gwErr, ok := err.(GatewayError)
	return gwErr, ok
}

// RetryAfterSeconds extracts the retry_after metadata from a rate-limit
// error; zero when absent.
func RetryAfterSeconds(err GatewayError) int {
	if v, ok := err.Metadata()["retry_after"]; ok {
		if secs, ok := v.(int); ok {
			return secs
		}
	}
	return 0
}

// UpstreamStatus extracts the upstream_status metadata from an upstream
// error; zero when absent.
func UpstreamStatus(err GatewayError) int {
	if v, ok := err.Metadata()["upstream_status"]; ok {
		if status, ok := v.(int); ok {
			return status
		}
	}
	return 0
}

// ================================================================================
// Response Envelope
// ================================================================================

// Envelope is the JSON structure returned for every terminal failure.
type Envelope struct {
	OK                bool   `json:"ok"`
	ErrorCode         string `json:"error_code"`
	Reason            string `json:"reason"`
	RequestID         string `json:"request_id"`
	UpstreamStatus    int    `json:"upstream_status,omitempty"`
	UpstreamErrorCode string `json:"upstream_error_code,omitempty"`
}

// ToEnvelope converts any error into the response envelope. Non-gateway
// errors collapse to INTERNAL_ERROR without leaking internals.
func ToEnvelope(err error, requestID string) Envelope {
	gwErr, ok := AsGatewayError(err)
	if !ok {
		gwErr = ErrInternal("")
	}

	env := Envelope{
		OK:        false,
		ErrorCode: string(gwErr.Code()),
		Reason:    gwErr.Reason(),
		RequestID: requestID,
	}

	if gwErr.Code() == constants.ErrCodeUpstreamUnavailable {
		env.UpstreamStatus = UpstreamStatus(gwErr)
		if v, ok := gwErr.Metadata()["upstream_error_code"].(string); ok {
			env.UpstreamErrorCode = v
		}
	}

	return env
}
