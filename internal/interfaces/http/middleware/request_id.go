// Package middleware provides the gin middleware chain of the gateway:
// request-id correlation, JWT authentication, and observability.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mcs-platform/mcs-gateway/pkg/constants"
)

// RequestID honors an inbound X-Request-Id or generates a fresh one, stores
// it in the request context, and always echoes it on the response. It runs
// first so even auth failures carry the correlation id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(constants.ContextKeyRequestID), requestID)
		c.Header(constants.HeaderRequestID, requestID)

		c.Next()
	}
}

// RequestIDFromContext returns the correlation id assigned to this request.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyRequestID))
}
