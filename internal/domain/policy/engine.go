package policy

import (
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
)

// Provider supplies the current immutable policy document. Concurrent callers
// see either the previous or the next document in full, never a mix; the
// file-backed implementation lives in internal/infrastructure/policy.
type Provider interface {
	// Snapshot returns the current document. Never nil once the initial
	// load has succeeded.
	Snapshot() *Document
}

// Engine evaluates admission decisions against the current policy snapshot.
// All operations are read-only.
type Engine struct {
	provider Provider
}

// NewEngine creates a policy engine over the given document provider.
func NewEngine(provider Provider) *Engine {
	return &Engine{provider: provider}
}

// ResolveGraphVersion resolves the version to execute for a (tenant, graph)
// pair. An explicit requested version wins over the configured default but
// must be a member of the entitled version set.
func (e *Engine) ResolveGraphVersion(tenantID, graphName, requestedVersion string) (string, error) {
	graph := e.provider.Snapshot().Lookup(tenantID, graphName)
	if graph == nil {
		return "", errors.ErrGraphNotAllowed(graphName, tenantID)
	}

	if requestedVersion != "" {
		if graph.HasVersion(requestedVersion) {
			return requestedVersion, nil
		}
		return "", errors.ErrVersionNotAllowed(graphName, requestedVersion, tenantID)
	}

	return graph.DefaultVersion, nil
}

// AssertGraphAllowed re-validates a previously resolved (tenant, graph,
// version) triple against the current snapshot.
func (e *Engine) AssertGraphAllowed(tenantID, graphName, version string) error {
	graph := e.provider.Snapshot().Lookup(tenantID, graphName)
	if graph == nil {
		return errors.ErrGraphNotAllowed(graphName, tenantID)
	}
	if !graph.HasVersion(version) {
		return errors.ErrVersionNotAllowed(graphName, version, tenantID)
	}
	return nil
}

// AssertScopes verifies that every required scope is present in the provided
// set. Order and duplicates are irrelevant; there is no wildcard matching.
func (e *Engine) AssertScopes(required, provided []string) error {
	if len(required) == 0 {
		return nil
	}

	have := make(map[string]bool, len(provided))
	for _, s := range provided {
		have[s] = true
	}
	for _, s := range required {
		if !have[s] {
			return errors.ErrInsufficientScopes(required, provided)
		}
	}
	return nil
}

// RateLimitConfig returns the quota configuration for a (tenant, graph) pair.
func (e *Engine) RateLimitConfig(tenantID, graphName string) (RateLimitConfig, error) {
	graph := e.provider.Snapshot().Lookup(tenantID, graphName)
	if graph == nil {
		return RateLimitConfig{}, errors.ErrGraphNotAllowed(graphName, tenantID)
	}
	return graph.Limits, nil
}

// GraphPolicy returns the full policy entry for a (tenant, graph) pair, or
// nil when the pair is not entitled.
func (e *Engine) GraphPolicy(tenantID, graphName string) *GraphPolicy {
	return e.provider.Snapshot().Lookup(tenantID, graphName)
}

// Routing returns the orchestrator routing configuration from the current
// snapshot.
func (e *Engine) Routing() Routing {
	return e.provider.Snapshot().Routing
}
