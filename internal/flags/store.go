package flags

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/audit"
)

// Store owns the registry file: cached reads, serialized writes, and
// cache invalidation. Construct one per workspace; there is no hidden
// process-wide singleton.
type Store struct {
	path string
	aud  *audit.Logger

	writeMu sync.Mutex // serializes read-modify-write cycles

	cacheMu sync.RWMutex
	cached  *Registry

	group singleflight.Group
}

// NewStore creates a store for the registry file at path. aud may be
// nil to discard flag-change audit events.
func NewStore(path string, aud *audit.Logger) *Store {
	return &Store{path: path, aud: aud}
}

// Path returns the registry file path.
func (s *Store) Path() string { return s.path }

// Load returns the current registry. The result is cached until
// Invalidate, Reload, or a write; concurrent cold loads are collapsed
// through singleflight. Load never fails: any read or parse error
// yields the fail-closed empty registry, since flag evaluation must
// not crash the host process.
func (s *Store) Load() *Registry {
	s.cacheMu.RLock()
	reg := s.cached
	s.cacheMu.RUnlock()
	if reg != nil {
		return reg
	}

	v, _, _ := s.group.Do("load", func() (any, error) {
		loaded := loadRegistry(s.path)
		s.cacheMu.Lock()
		s.cached = loaded
		s.cacheMu.Unlock()
		return loaded, nil
	})
	return v.(*Registry)
}

func loadRegistry(path string) *Registry {
	data, err := os.ReadFile(path) // #nosec G304 - controlled path from config
	if err != nil {
		return EmptyRegistry()
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return EmptyRegistry()
	}
	if reg.Features == nil {
		reg.Features = map[string]*Definition{}
	}
	return &reg
}

// Invalidate drops the read cache; the next Load re-reads the file.
func (s *Store) Invalidate() {
	s.cacheMu.Lock()
	s.cached = nil
	s.cacheMu.Unlock()
}

// Reload invalidates and immediately re-reads.
func (s *Store) Reload() *Registry {
	s.Invalidate()
	return s.Load()
}

// IsEnabled reports the effective enabled state of name against the
// current registry.
func (s *Store) IsEnabled(name string) bool {
	return s.Load().IsEnabled(name)
}

// Validate checks the current registry for consistency.
func (s *Store) Validate() *ValidationResult {
	return s.Load().Validate()
}

// RequireFeature returns a guard closure for use at the top of
// protected operations. The guard re-evaluates at call time, so a flag
// flipped between construction and call is honored.
func (s *Store) RequireFeature(name string) func() error {
	return func() error {
		if !s.IsEnabled(name) {
			return &FeatureDisabledError{Name: name}
		}
		return nil
	}
}

// persist writes reg atomically (temp file + rename) and installs it
// as the cached registry. Callers must hold writeMu.
func (s *Store) persist(reg *Registry) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing registry: %w", err)
	}

	s.cacheMu.Lock()
	s.cached = reg
	s.cacheMu.Unlock()
	return nil
}

// Init writes the seeded default registry when no registry file exists
// yet. Returns fs.ErrExist (wrapped) when one is already present.
func (s *Store) Init(environment string) error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("registry %s: %w", s.path, fs.ErrExist)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(seedRegistry(environment))
}

// Watch invalidates the read cache whenever the registry file changes
// on disk, so out-of-band edits are picked up without a restart. The
// watcher runs until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch the directory, not the file: editors and our own atomic
	// rename replace the inode.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		base := filepath.Base(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == base &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.Invalidate()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
