package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
)

// HealthHandler serves the unauthenticated liveness probe.
type HealthHandler struct {
	policies policy.Provider
}

func NewHealthHandler(policies policy.Provider) *HealthHandler {
	return &HealthHandler{policies: policies}
}

// Check reports process liveness and whether a policy document is loaded.
// GET /healthz
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"service":       constants.ServiceName,
		"policy_loaded": h.policies.Snapshot() != nil,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
