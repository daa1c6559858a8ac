// Package policy holds the graph policy document model and the pure decision
// logic evaluated against it: version resolution, entitlement, scope checks,
// and rate-limit config lookup.
package policy

import (
	"fmt"
	"strings"
)

// RateLimitConfig is the per-graph quota configuration.
//
// Burst is carried from the policy document but never consulted by the
// fixed-window check.
type RateLimitConfig struct {
	RPM   int `yaml:"rpm"`
	Burst int `yaml:"burst"`
}

// GraphPolicy describes one named, versioned graph a tenant may invoke.
// Immutable once loaded.
type GraphPolicy struct {
	Name           string          `yaml:"name"`
	Versions       []string        `yaml:"versions"`
	DefaultVersion string          `yaml:"default_version"`
	RequiredScopes []string        `yaml:"required_scopes"`
	Limits         RateLimitConfig `yaml:"limits"`
}

// HasVersion reports whether version is a member of the entitled set.
// Version strings must match exactly; there is no closest-version matching.
func (g *GraphPolicy) HasVersion(version string) bool {
	for _, v := range g.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// GraphSet is a named list of graph policies.
type GraphSet struct {
	Graphs []GraphPolicy `yaml:"graphs"`
}

// RetryPolicy controls proxy retry behavior for transient upstream statuses.
type RetryPolicy struct {
	Enabled    bool `yaml:"enabled"`
	MaxRetries int  `yaml:"max_retries"`
}

// Routing describes how requests reach the orchestrator.
type Routing struct {
	OrchestratorBaseURL string      `yaml:"orchestrator_base_url"`
	TimeoutMs           int         `yaml:"timeout_ms"`
	Retry               RetryPolicy `yaml:"retry"`
}

// Document is the complete policy document. A loaded document is immutable;
// reloads publish a fresh instance, never mutate in place.
type Document struct {
	Default GraphSet            `yaml:"default"`
	Tenants map[string]GraphSet `yaml:"tenants"`
	Routing Routing             `yaml:"routing"`
}

// Lookup resolves the GraphPolicy for a (tenant, graph) pair. A tenant
// override with a matching name fully shadows the default entry; there is no
// field-level merge. Nil means the pair is not entitled.
func (d *Document) Lookup(tenantID, graphName string) *GraphPolicy {
	if tenant, ok := d.Tenants[tenantID]; ok {
		for i := range tenant.Graphs {
			if tenant.Graphs[i].Name == graphName {
				return &tenant.Graphs[i]
			}
		}
	}
	for i := range d.Default.Graphs {
		if d.Default.Graphs[i].Name == graphName {
			return &d.Default.Graphs[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of a loaded document. A failure
// here is a fatal configuration error, not a per-request error.
func (d *Document) Validate() error {
	if len(d.Default.Graphs) == 0 {
		return fmt.Errorf("policy must have default.graphs")
	}
	if strings.TrimSpace(d.Routing.OrchestratorBaseURL) == "" {
		return fmt.Errorf("policy must have routing.orchestrator_base_url")
	}
	if d.Routing.TimeoutMs < 0 {
		return fmt.Errorf("routing.timeout_ms must be >= 0")
	}
	if d.Routing.Retry.MaxRetries < 0 {
		return fmt.Errorf("routing.retry.max_retries must be >= 0")
	}

	if err := validateGraphs("default", d.Default.Graphs); err != nil {
		return err
	}
	for tenantID, set := range d.Tenants {
		if err := validateGraphs("tenants."+tenantID, set.Graphs); err != nil {
			return err
		}
	}
	return nil
}

func validateGraphs(section string, graphs []GraphPolicy) error {
	seen := make(map[string]bool, len(graphs))
	for i := range graphs {
		g := &graphs[i]
		if g.Name == "" {
			return fmt.Errorf("%s: graph must have a name", section)
		}
		if seen[g.Name] {
			return fmt.Errorf("%s: duplicate graph name %q", section, g.Name)
		}
		seen[g.Name] = true
		if len(g.Versions) == 0 {
			return fmt.Errorf("%s: graph %q must have versions", section, g.Name)
		}
		if g.DefaultVersion == "" {
			return fmt.Errorf("%s: graph %q must have default_version", section, g.Name)
		}
		if !g.HasVersion(g.DefaultVersion) {
			return fmt.Errorf("%s: graph %q default_version %q is not in versions",
				section, g.Name, g.DefaultVersion)
		}
		if g.Limits.RPM <= 0 {
			return fmt.Errorf("%s: graph %q limits.rpm must be > 0", section, g.Name)
		}
		if g.Limits.Burst < 0 {
			return fmt.Errorf("%s: graph %q limits.burst must be >= 0", section, g.Name)
		}
	}
	return nil
}
