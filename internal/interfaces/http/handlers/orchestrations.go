package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/mcs-platform/mcs-gateway/internal/application/admission"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/middleware"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// OrchestrationsHandler serves the graph-bearing routes. Every request runs
// the full admission pipeline before anything is forwarded.
type OrchestrationsHandler struct {
	pipeline *admission.Pipeline
	log      logger.Logger
}

func NewOrchestrationsHandler(pipeline *admission.Pipeline, log logger.Logger) *OrchestrationsHandler {
	return &OrchestrationsHandler{
		pipeline: pipeline,
		log:      log.WithComponent("orchestrations_handler"),
	}
}

// Run starts a new orchestration for the graph in the path.
// POST /api/mcs/v1/orchestrations/:graph/run
func (h *OrchestrationsHandler) Run(c *gin.Context) {
	h.execute(c, "/run")
}

// Replay re-runs a completed orchestration from its recorded inputs.
// POST /api/mcs/v1/orchestrations/:graph/replay
func (h *OrchestrationsHandler) Replay(c *gin.Context) {
	h.execute(c, "/replay")
}

// SubmitManualReview resolves a pending human-review gate.
// POST /api/mcs/v1/orchestrations/:graph/manual-review/submit
func (h *OrchestrationsHandler) SubmitManualReview(c *gin.Context) {
	h.execute(c, "/manual-review/submit")
}

func (h *OrchestrationsHandler) execute(c *gin.Context, action string) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		RespondError(c, errors.ErrUnauthorized("no identity on request"))
		return
	}

	graphName := c.Param("graph")
	if graphName == "" {
		RespondError(c, errors.ErrNotFound("graph name missing from path"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, errors.ErrInternal("failed to read request body").WithCause(err))
		return
	}

	req := admission.Request{
		Context: &admission.RequestContext{
			TenantID:  identity.TenantID,
			UserID:    identity.Subject,
			Scopes:    identity.Scopes,
			RequestID: middleware.RequestIDFromContext(c),
			GraphName: graphName,
		},
		RequestedVersion: c.GetHeader(constants.HeaderGraphVersion),
		Method:           c.Request.Method,
		UpstreamPath:     "/v1/orchestrations/" + graphName + action,
		Query:            c.Request.URL.Query(),
		ContentType:      c.ContentType(),
		Traceparent:      c.GetHeader(constants.HeaderTraceparent),
		Body:             body,
	}

	outcome, err := h.pipeline.Execute(c.Request.Context(), req)
	writeRateLimitHeaders(c, outcome.RateLimit)
	if err != nil {
		RespondError(c, err)
		return
	}

	relayResponse(c, outcome.Response)
}
