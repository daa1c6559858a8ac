package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mcs-platform/mcs-gateway/internal/application/admission"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/middleware"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// PlatformHandler serves the graph-less metadata reads. These require a
// valid identity but bypass entitlement and quota checks: a caller may list
// graphs it is not yet entitled to run.
type PlatformHandler struct {
	pipeline *admission.Pipeline
	log      logger.Logger
}

func NewPlatformHandler(pipeline *admission.Pipeline, log logger.Logger) *PlatformHandler {
	return &PlatformHandler{
		pipeline: pipeline,
		log:      log.WithComponent("platform_handler"),
	}
}

// Graphs lists the graph catalog.
// GET /api/mcs/v1/platform/graphs
func (h *PlatformHandler) Graphs(c *gin.Context) {
	h.relay(c, "/v1/platform/graphs")
}

// Graph returns one graph's metadata.
// GET /api/mcs/v1/platform/graphs/:graph
func (h *PlatformHandler) Graph(c *gin.Context) {
	h.relay(c, "/v1/platform/graphs/"+c.Param("graph"))
}

// GraphSchema returns the input schema of one graph version.
// GET /api/mcs/v1/platform/graphs/:graph/:version/schema
func (h *PlatformHandler) GraphSchema(c *gin.Context) {
	h.relay(c, "/v1/platform/graphs/"+c.Param("graph")+"/"+c.Param("version")+"/schema")
}

// Tools lists the tool catalog.
// GET /api/mcs/v1/platform/tools
func (h *PlatformHandler) Tools(c *gin.Context) {
	h.relay(c, "/v1/platform/tools")
}

// Tool returns one tool's metadata.
// GET /api/mcs/v1/platform/tools/:tool
func (h *PlatformHandler) Tool(c *gin.Context) {
	h.relay(c, "/v1/platform/tools/"+c.Param("tool"))
}

// ToolSchema returns the invocation schema of one tool version.
// GET /api/mcs/v1/platform/tools/:tool/:version/schema
func (h *PlatformHandler) ToolSchema(c *gin.Context) {
	h.relay(c, "/v1/platform/tools/"+c.Param("tool")+"/"+c.Param("version")+"/schema")
}

func (h *PlatformHandler) relay(c *gin.Context, upstreamPath string) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		RespondError(c, errors.ErrUnauthorized("no identity on request"))
		return
	}

	req := admission.Request{
		Context: &admission.RequestContext{
			TenantID:  identity.TenantID,
			UserID:    identity.Subject,
			Scopes:    identity.Scopes,
			RequestID: middleware.RequestIDFromContext(c),
		},
		Method:       c.Request.Method,
		UpstreamPath: upstreamPath,
		Query:        c.Request.URL.Query(),
		Traceparent:  c.GetHeader(constants.HeaderTraceparent),
	}

	outcome, err := h.pipeline.Execute(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}

	relayResponse(c, outcome.Response)
}
