// ABOUTME: Persistence backends for the checksum cache.
// ABOUTME: JSON file store here; the badger store lives in badger.go.
package checksum

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCacheCorrupt marks a cache file that could not be decoded. Callers
// degrade to an empty cache rather than aborting the run.
var ErrCacheCorrupt = errors.New("checksum cache corrupt")

// Store persists the path→hash map between runs.
type Store interface {
	// Load reads the persisted map. A missing store returns an empty
	// map and no error; a corrupt one returns ErrCacheCorrupt.
	Load() (map[string]string, error)
	// Save replaces the persisted map.
	Save(entries map[string]string) error
}

// FileStore persists the cache as a single JSON document, the flat
// path→hash map shape.
type FileStore struct {
	Path string
}

// NewFileStore creates a JSON file store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrCacheCorrupt, s.Path, err)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCacheCorrupt, s.Path, err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (s *FileStore) Save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0750); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	// Write-then-rename so a crash mid-save cannot corrupt the cache.
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
