package storage

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ───────────────────────────────────────────────────────────────────────────
// MetaCatalog — host metadata catalog (§1, "out of scope")
// ───────────────────────────────────────────────────────────────────────────
//
// Persists the per-object metadata string under a URI. Device.Create stores
// the form object.go's metadataString renders,
// "version=1.0,key_format=<fmt>,value_format=<fmt>"; parseMetadataString
// reads only that form and rejects a parenthesised "version=(major=..,
// minor=..)" field as an incompatible version. yamlMetaCatalog is a
// concrete reference implementation, adapted from the teacher's
// map+sync.RWMutex catalog manager and backed by gopkg.in/yaml.v3 so test
// fixtures survive process restarts — a real host's metadata catalog is
// whatever store backs its own schema.

// MetaCatalog is the interface the core consumes to persist and retrieve a
// URI's metadata string.
type MetaCatalog interface {
	Get(uri string) (metadata string, found bool, err error)
	Put(uri string, metadata string) error
	Delete(uri string) error
}

// yamlMetaCatalog is a YAML-file-backed MetaCatalog.
type yamlMetaCatalog struct {
	mu      sync.RWMutex
	path    string // empty means in-memory only, no persistence
	entries map[string]string
}

// NewInMemoryMetaCatalog returns a MetaCatalog with no backing file.
func NewInMemoryMetaCatalog() MetaCatalog {
	return &yamlMetaCatalog{entries: make(map[string]string)}
}

// LoadYAMLMetaCatalog opens (or creates) a YAML-file-backed MetaCatalog at
// path. A missing file is treated as an empty catalog.
func LoadYAMLMetaCatalog(path string) (MetaCatalog, error) {
	cat := &yamlMetaCatalog{path: path, entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, ioErrorf("read metadata catalog %s: %v", path, err)
	}
	if len(data) == 0 {
		return cat, nil
	}
	if err := yaml.Unmarshal(data, &cat.entries); err != nil {
		return nil, ioErrorf("parse metadata catalog %s: %v", path, err)
	}
	return cat, nil
}

func (c *yamlMetaCatalog) Get(uri string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[uri]
	return v, ok, nil
}

func (c *yamlMetaCatalog) Put(uri string, metadata string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = metadata
	return c.persistLocked()
}

func (c *yamlMetaCatalog) Delete(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
	return c.persistLocked()
}

func (c *yamlMetaCatalog) persistLocked() error {
	if c.path == "" {
		return nil
	}
	data, err := yaml.Marshal(c.entries)
	if err != nil {
		return ioErrorf("marshal metadata catalog: %v", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return ioErrorf("write metadata catalog %s: %v", c.path, err)
	}
	return nil
}
