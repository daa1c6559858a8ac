// Package policy provides the file-backed policy document loader with
// atomic hot reload.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	domain "github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// FileStore loads the policy document from a YAML file and publishes it
// through an atomic pointer. Readers acquire the current document with
// Snapshot; reloads swap the whole document, never mutate it in place.
//
// FileStore implements domain/policy.Provider. A remote-config store can be
// slotted in behind the same interface without touching the Engine.
type FileStore struct {
	path    string
	current atomic.Pointer[domain.Document]
	logger  logger.Logger
	watcher *fsnotify.Watcher
}

// NewFileStore creates a store for the document at path and performs the
// initial synchronous load. A load or validation failure here is fatal: the
// gateway must not serve requests against a missing or partial document.
func NewFileStore(path string, log logger.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: log.WithComponent("policy_store"),
	}

	if err := s.Reload(context.Background()); err != nil {
		return nil, fmt.Errorf("initial policy load: %w", err)
	}

	return s, nil
}

// Snapshot returns the current immutable document.
func (s *FileStore) Snapshot() *domain.Document {
	return s.current.Load()
}

// Reload reads, parses, and validates the backing file, then atomically
// publishes the new document. On failure after the initial load, the
// previous document stays in effect.
func (s *FileStore) Reload(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read policy file %s: %w", s.path, err)
	}

	var doc domain.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse policy file %s: %w", s.path, err)
	}

	if err := doc.Validate(); err != nil {
		return fmt.Errorf("validate policy file %s: %w", s.path, err)
	}

	s.current.Store(&doc)
	s.logger.Info(ctx, "Policy document loaded",
		logger.String("path", s.path),
		logger.Int("default_graphs", len(doc.Default.Graphs)),
		logger.Int("tenant_overrides", len(doc.Tenants)),
	)
	return nil
}

// Watch blocks until ctx is cancelled, reloading the document whenever the
// backing file changes. A failed reload is logged and the previous document
// kept. Intended for non-production mode; run it on its own goroutine.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	s.watcher = watcher
	defer watcher.Close()

	// Watch the directory, not the file: editors and config mounts replace
	// the file by rename, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch policy dir: %w", err)
	}

	s.logger.Info(ctx, "Policy watcher started", logger.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Policy watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				s.logger.Error(ctx, "Policy reload failed, keeping previous document", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error(ctx, "Policy watcher error", err)
		}
	}
}
