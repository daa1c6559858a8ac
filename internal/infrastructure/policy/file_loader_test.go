package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrapolicy "github.com/mcs-platform/mcs-gateway/internal/infrastructure/policy"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

const validPolicy = `
routing:
  orchestrator_base_url: http://orchestrator:8080
  timeout_ms: 30000
  retry:
    enabled: true
    max_retries: 2
default:
  graphs:
    - name: claims-triage
      versions: ["v1"]
      default_version: v1
      required_scopes: ["orchestrations:run"]
      limits:
        rpm: 60
        burst: 0
`

const updatedPolicy = `
routing:
  orchestrator_base_url: http://orchestrator:8080
  timeout_ms: 30000
  retry:
    enabled: true
    max_retries: 2
default:
  graphs:
    - name: claims-triage
      versions: ["v1", "v2"]
      default_version: v2
      required_scopes: ["orchestrations:run"]
      limits:
        rpm: 120
        burst: 0
`

func writePolicy(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFileStore_LoadsDocument(t *testing.T) {
	path := writePolicy(t, t.TempDir(), validPolicy)

	store, err := infrapolicy.NewFileStore(path, logger.NewNoopLogger())
	require.NoError(t, err)

	doc := store.Snapshot()
	require.NotNil(t, doc)
	assert.Equal(t, "http://orchestrator:8080", doc.Routing.OrchestratorBaseURL)
	require.Len(t, doc.Default.Graphs, 1)
	assert.Equal(t, "claims-triage", doc.Default.Graphs[0].Name)
}

func TestNewFileStore_MissingFileIsFatal(t *testing.T) {
	_, err := infrapolicy.NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNoopLogger())
	assert.Error(t, err)
}

func TestNewFileStore_InvalidDocumentIsFatal(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		path := writePolicy(t, t.TempDir(), "default: [broken")
		_, err := infrapolicy.NewFileStore(path, logger.NewNoopLogger())
		assert.Error(t, err)
	})

	t.Run("missing orchestrator base url", func(t *testing.T) {
		path := writePolicy(t, t.TempDir(), `
default:
  graphs:
    - name: claims-triage
      versions: ["v1"]
      default_version: v1
      limits:
        rpm: 60
`)
		_, err := infrapolicy.NewFileStore(path, logger.NewNoopLogger())
		assert.Error(t, err)
	})
}

func TestReload_SwapsDocumentAtomically(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, validPolicy)

	store, err := infrapolicy.NewFileStore(path, logger.NewNoopLogger())
	require.NoError(t, err)
	before := store.Snapshot()

	writePolicy(t, dir, updatedPolicy)
	require.NoError(t, store.Reload(context.Background()))

	after := store.Snapshot()
	assert.NotSame(t, before, after)
	assert.Equal(t, "v2", after.Default.Graphs[0].DefaultVersion)
	assert.Equal(t, 120, after.Default.Graphs[0].Limits.RPM)

	// The previous document instance is untouched.
	assert.Equal(t, "v1", before.Default.Graphs[0].DefaultVersion)
}

func TestReload_FailureKeepsPreviousDocument(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, validPolicy)

	store, err := infrapolicy.NewFileStore(path, logger.NewNoopLogger())
	require.NoError(t, err)
	before := store.Snapshot()

	writePolicy(t, dir, "default: [broken")
	assert.Error(t, store.Reload(context.Background()))
	assert.Same(t, before, store.Snapshot())

	writePolicy(t, dir, `
routing:
  orchestrator_base_url: ""
default:
  graphs: []
`)
	assert.Error(t, store.Reload(context.Background()))
	assert.Same(t, before, store.Snapshot())
}
