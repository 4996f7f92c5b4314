// Package tokencache persists named token records in a local YAML file.
//
// The cache is advisory: any read failure (missing file, corrupt content)
// yields an empty cache instead of an error, and the authoritative path is
// always a fresh request to the token service. Writes rewrite the whole file;
// concurrent invocations race with last-writer-wins semantics, which is
// accepted for a single-user local tool.
package tokencache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hllvc/ztoken/internal/token"
)

// Cache stores token records keyed by name in a single YAML file.
// No state is held between calls; every operation reads the file fresh.
type Cache struct {
	filePath string
	now      func() time.Time
}

// New creates a Cache backed by the given file path. The file does not have
// to exist yet.
func New(filePath string) (*Cache, error) {
	if filePath == "" {
		return nil, fmt.Errorf("cache file path cannot be empty")
	}

	return &Cache{
		filePath: filePath,
		now:      time.Now,
	}, nil
}

// Load reads the persisted cache. Missing or unreadable files and undecodable
// content all yield an empty cache, never an error.
func (c *Cache) Load() map[string]*token.Record {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return map[string]*token.Record{}
	}

	var cache map[string]*token.Record
	if err := yaml.Unmarshal(data, &cache); err != nil || cache == nil {
		return map[string]*token.Record{}
	}
	return cache
}

// Get returns the record stored under name, or nil if absent.
func (c *Cache) Get(name string) *token.Record {
	return c.Load()[name]
}

// Names returns the cached token names in unspecified order.
func (c *Cache) Names() []string {
	cache := c.Load()
	names := make([]string, 0, len(cache))
	for name := range cache {
		names = append(names, name)
	}
	return names
}

// Save inserts or overwrites the record under name and rewrites the cache
// file. The record's creation time is set to the current local time, so
// validity is always computed against the clock that wrote the record.
func (c *Cache) Save(name string, record *token.Record) error {
	if name == "" {
		return fmt.Errorf("token name cannot be empty")
	}
	if record == nil {
		return fmt.Errorf("token record cannot be nil")
	}

	record.CreationTime = c.now().Unix()

	cache := c.Load()
	cache[name] = record

	return c.write(cache)
}

// Delete removes the record under name. Deleting an absent name is a no-op.
func (c *Cache) Delete(name string) error {
	cache := c.Load()
	if _, ok := cache[name]; !ok {
		return nil
	}
	delete(cache, name)
	return c.write(cache)
}

// write rewrites the entire cache file atomically via temp file + rename,
// creating the parent directory if needed.
func (c *Cache) write(cache map[string]*token.Record) error {
	data, err := yaml.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, c.filePath); err != nil {
		return err
	}

	// Tokens are credentials, keep the file owner-only.
	return os.Chmod(c.filePath, 0600)
}
