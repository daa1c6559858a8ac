// Package handlers contains the gin route handlers of the gateway. Handlers
// translate between HTTP and the admission pipeline; they never contain
// policy or quota logic themselves.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcs-platform/mcs-gateway/internal/domain/proxy"
	"github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
)

// RespondError renders the error envelope exactly once at the HTTP boundary.
// A failed request carries a 4xx/5xx status derived from the gateway error;
// anything unrecognized collapses to a 500.
func RespondError(c *gin.Context, err error) {
	requestID := c.GetString(string(constants.ContextKeyRequestID))

	status := http.StatusInternalServerError
	if gwErr, ok := errors.AsGatewayError(err); ok {
		status = gwErr.HTTPStatus()
		if gwErr.Code() == constants.ErrCodeRateLimited {
			if retryAfter := errors.RetryAfterSeconds(gwErr); retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}

	c.JSON(status, errors.ToEnvelope(err, requestID))
}

// writeRateLimitHeaders emits the window state headers. They are present on
// allowed and denied responses alike once the quota stage has run.
func writeRateLimitHeaders(c *gin.Context, res *ratelimit.Result) {
	if res == nil {
		return
	}
	c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	c.Header(constants.HeaderRateLimitReset, res.ResetAt.UTC().Format(time.RFC3339))
}

// relayResponse writes the upstream response through verbatim: final status,
// filtered headers, and the body bytes untouched.
func relayResponse(c *gin.Context, resp *proxy.ForwardResponse) {
	for key, values := range resp.Headers {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}
