// Package cache implements the namespaced key/value store the engine
// builds against, backed by one JSON file per namespace.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/ports"
)

var _ ports.Store = (*Store)(nil)

// Store implements ports.Store. Each namespace is held as an in-memory map
// and persisted as <root>/<namespace>.json on every write.
type Store struct {
	root string

	mu         sync.RWMutex
	namespaces map[string]map[string]json.RawMessage
}

// NewStore creates a Store rooted at the given directory, loading any
// namespaces already persisted there.
func NewStore(root string) (*Store, error) {
	s := &Store{
		root:       filepath.Clean(root),
		namespaces: make(map[string]map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read cache directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ns := name[:len(name)-len(".json")]
		if err := s.loadNamespace(ns); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadNamespace(ns string) error {
	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.nsPath(ns))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to read cache namespace"), "namespace", ns)
	}

	if len(data) == 0 {
		return nil
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unmarshal cache namespace"), "namespace", ns)
	}

	s.namespaces[ns] = entries
	return nil
}

// save persists one namespace. Callers must hold the write lock.
func (s *Store) save(ns string) error {
	data, err := json.MarshalIndent(s.namespaces[ns], "", "  ")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to marshal cache namespace"), "namespace", ns)
	}

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}

	//nolint:gosec // Path is cleaned and provided by trusted caller
	if err := os.WriteFile(s.nsPath(ns), data, 0o644); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write cache namespace"), "namespace", ns)
	}

	return nil
}

func (s *Store) nsPath(ns string) string {
	return filepath.Join(s.root, ns+".json")
}

// Get retrieves the value for a key. Returns nil, nil if absent.
func (s *Store) Get(key, namespace string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.namespaces[namespace][key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Set stores the value for a key, overwriting any previous value.
func (s *Store) Set(key, namespace string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]json.RawMessage)
		s.namespaces[namespace] = ns
	}
	raw := make(json.RawMessage, len(value))
	copy(raw, value)
	ns[key] = raw

	return s.save(namespace)
}

// Exists reports whether the key is present.
func (s *Store) Exists(key, namespace string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.namespaces[namespace][key]
	return ok, nil
}

// List returns all keys in the namespace, sorted.
func (s *Store) List(namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.namespaces[namespace]))
	for k := range s.namespaces[namespace] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(key, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil
	}
	if _, present := ns[key]; !present {
		return nil
	}
	delete(ns, key)

	return s.save(namespace)
}
