package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
)

type staticProvider struct {
	doc *policy.Document
}

func (p *staticProvider) Snapshot() *policy.Document { return p.doc }

func testDocument() *policy.Document {
	return &policy.Document{
		Default: policy.GraphSet{
			Graphs: []policy.GraphPolicy{
				{
					Name:           "claims-triage",
					Versions:       []string{"v1"},
					DefaultVersion: "v1",
					RequiredScopes: []string{"orchestrations:run"},
					Limits:         policy.RateLimitConfig{RPM: 60},
				},
				{
					Name:           "document-ingest",
					Versions:       []string{"v1", "v2"},
					DefaultVersion: "v1",
					Limits:         policy.RateLimitConfig{RPM: 120},
				},
			},
		},
		Tenants: map[string]policy.GraphSet{
			"acme-corp": {
				Graphs: []policy.GraphPolicy{
					{
						Name:           "claims-triage",
						Versions:       []string{"v1", "v2"},
						DefaultVersion: "v2",
						RequiredScopes: []string{"orchestrations:run", "claims:write"},
						Limits:         policy.RateLimitConfig{RPM: 600},
					},
				},
			},
		},
		Routing: policy.Routing{
			OrchestratorBaseURL: "http://orchestrator:8080",
			TimeoutMs:           30000,
			Retry:               policy.RetryPolicy{Enabled: true, MaxRetries: 2},
		},
	}
}

func newTestEngine() *policy.Engine {
	return policy.NewEngine(&staticProvider{doc: testDocument()})
}

func TestLookup_TenantOverrideShadowsDefault(t *testing.T) {
	doc := testDocument()

	// A tenant with an override sees only the override, not a merge.
	graph := doc.Lookup("acme-corp", "claims-triage")
	require.NotNil(t, graph)
	assert.Equal(t, "v2", graph.DefaultVersion)
	assert.Equal(t, 600, graph.Limits.RPM)
	assert.True(t, graph.HasVersion("v2"))

	// A tenant without an override falls through to the default.
	graph = doc.Lookup("other-tenant", "claims-triage")
	require.NotNil(t, graph)
	assert.Equal(t, "v1", graph.DefaultVersion)
	assert.Equal(t, 60, graph.Limits.RPM)
	assert.False(t, graph.HasVersion("v2"))

	// Graphs not granted anywhere resolve to nil.
	assert.Nil(t, doc.Lookup("acme-corp", "unknown-graph"))
}

func TestResolveGraphVersion(t *testing.T) {
	engine := newTestEngine()

	t.Run("default version when none requested", func(t *testing.T) {
		version, err := engine.ResolveGraphVersion("other-tenant", "claims-triage", "")
		require.NoError(t, err)
		assert.Equal(t, "v1", version)
	})

	t.Run("explicit version wins when entitled", func(t *testing.T) {
		version, err := engine.ResolveGraphVersion("acme-corp", "claims-triage", "v1")
		require.NoError(t, err)
		assert.Equal(t, "v1", version)
	})

	t.Run("tenant override changes the default", func(t *testing.T) {
		version, err := engine.ResolveGraphVersion("acme-corp", "claims-triage", "")
		require.NoError(t, err)
		assert.Equal(t, "v2", version)
	})

	t.Run("version outside the entitled set is rejected", func(t *testing.T) {
		_, err := engine.ResolveGraphVersion("other-tenant", "claims-triage", "v2")
		require.Error(t, err)
		gwErr, ok := errors.AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, constants.ErrCodeVersionNotAllowed, gwErr.Code())
	})

	t.Run("unknown graph is a permission denial", func(t *testing.T) {
		_, err := engine.ResolveGraphVersion("other-tenant", "no-such-graph", "")
		require.Error(t, err)
		gwErr, ok := errors.AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, constants.ErrCodePermissionDenied, gwErr.Code())
	})

	t.Run("resolution is deterministic for a fixed snapshot", func(t *testing.T) {
		first, err := engine.ResolveGraphVersion("acme-corp", "claims-triage", "")
		require.NoError(t, err)
		second, err := engine.ResolveGraphVersion("acme-corp", "claims-triage", "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestAssertGraphAllowed(t *testing.T) {
	engine := newTestEngine()

	assert.NoError(t, engine.AssertGraphAllowed("acme-corp", "claims-triage", "v2"))

	err := engine.AssertGraphAllowed("other-tenant", "claims-triage", "v2")
	require.Error(t, err)

	err = engine.AssertGraphAllowed("acme-corp", "unknown-graph", "v1")
	require.Error(t, err)
	gwErr, ok := errors.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodePermissionDenied, gwErr.Code())
}

func TestAssertScopes(t *testing.T) {
	engine := newTestEngine()

	t.Run("subset match ignores order and extras", func(t *testing.T) {
		err := engine.AssertScopes(
			[]string{"claims:write", "orchestrations:run"},
			[]string{"orchestrations:run", "extra:scope", "claims:write"},
		)
		assert.NoError(t, err)
	})

	t.Run("empty requirement always passes", func(t *testing.T) {
		assert.NoError(t, engine.AssertScopes(nil, nil))
		assert.NoError(t, engine.AssertScopes([]string{}, []string{"anything"}))
	})

	t.Run("missing scope fails with the full sets reported", func(t *testing.T) {
		err := engine.AssertScopes([]string{"claims:write"}, []string{"orchestrations:run"})
		require.Error(t, err)
		gwErr, ok := errors.AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, constants.ErrCodeInsufficientScope, gwErr.Code())
	})

	t.Run("no wildcard matching", func(t *testing.T) {
		err := engine.AssertScopes([]string{"claims:write"}, []string{"claims:*"})
		assert.Error(t, err)
	})
}

func TestRateLimitConfig(t *testing.T) {
	engine := newTestEngine()

	limits, err := engine.RateLimitConfig("acme-corp", "claims-triage")
	require.NoError(t, err)
	assert.Equal(t, 600, limits.RPM)

	_, err = engine.RateLimitConfig("acme-corp", "unknown-graph")
	assert.Error(t, err)
}

func TestDocumentValidate(t *testing.T) {
	t.Run("valid document passes", func(t *testing.T) {
		assert.NoError(t, testDocument().Validate())
	})

	t.Run("missing default graphs", func(t *testing.T) {
		doc := testDocument()
		doc.Default.Graphs = nil
		assert.Error(t, doc.Validate())
	})

	t.Run("missing orchestrator base url", func(t *testing.T) {
		doc := testDocument()
		doc.Routing.OrchestratorBaseURL = "  "
		assert.Error(t, doc.Validate())
	})

	t.Run("default version must be in versions", func(t *testing.T) {
		doc := testDocument()
		doc.Default.Graphs[0].DefaultVersion = "v9"
		assert.Error(t, doc.Validate())
	})

	t.Run("rpm must be positive", func(t *testing.T) {
		doc := testDocument()
		doc.Default.Graphs[0].Limits.RPM = 0
		assert.Error(t, doc.Validate())
	})

	t.Run("duplicate graph names rejected", func(t *testing.T) {
		doc := testDocument()
		doc.Default.Graphs = append(doc.Default.Graphs, doc.Default.Graphs[0])
		assert.Error(t, doc.Validate())
	})

	t.Run("tenant override validated too", func(t *testing.T) {
		doc := testDocument()
		set := doc.Tenants["acme-corp"]
		set.Graphs[0].Versions = nil
		doc.Tenants["acme-corp"] = set
		assert.Error(t, doc.Validate())
	})
}
