// ABOUTME: Change-detection cache mapping file paths to content hashes.
// ABOUTME: An explicit object owned by the orchestrator, no package globals.
package checksum

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Cache filters file lists down to files whose content changed since the
// last persisted run. A path absent from the cache is always treated as
// changed.
type Cache struct {
	entries map[string]string
	hasher  Hasher
	logger  *log.Logger
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: map[string]string{}}
}

// Load builds a cache from a store. A corrupt or unreadable store
// degrades to an empty cache, which just means every file looks changed
// on this run.
func Load(store Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	c := New()
	c.logger = logger
	entries, err := store.Load()
	if err != nil {
		logger.Warn("checksum cache unreadable, treating all files as changed", "err", err)
		return c
	}
	c.entries = entries
	return c
}

// SetHasher overrides the default hasher, letting the orchestrator tune
// the large-file threshold.
func (c *Cache) SetHasher(h Hasher) {
	c.hasher = h
}

// Len reports how many files the cache currently tracks.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Changed returns the subset of paths whose current hash differs from
// the cached hash or that the cache has never seen. A file that cannot
// be hashed is included: the extractor will surface the real error.
func (c *Cache) Changed(paths []string) []string {
	var changed []string
	for _, path := range paths {
		hash, err := c.hasher.HashFile(path)
		if err != nil {
			c.logf("hash failed, treating file as changed", "path", path, "err", err)
			changed = append(changed, path)
			continue
		}
		if cached, ok := c.entries[path]; !ok || cached != hash {
			changed = append(changed, path)
		}
	}
	return changed
}

// MarkProcessed records the file's current hash so the next run skips it
// if the content is unchanged.
func (c *Cache) MarkProcessed(path string) error {
	hash, err := c.hasher.HashFile(path)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	c.entries[path] = hash
	return nil
}

// Save persists the cache through the store. A failed save is the
// caller's signal to log and move on; the next run simply reprocesses
// more than strictly necessary.
func (c *Cache) Save(store Store) error {
	if err := store.Save(c.entries); err != nil {
		return fmt.Errorf("save checksum cache: %w", err)
	}
	return nil
}

func (c *Cache) logf(msg string, kv ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, kv...)
		return
	}
	log.Warn(msg, kv...)
}
