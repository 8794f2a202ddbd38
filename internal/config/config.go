// ABOUTME: Pipeline configuration with cache-backend selection.
// ABOUTME: Handles paths, batch sizing, and sampler tuning knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/healthpipe/internal/checksum"
	"github.com/harperreed/healthpipe/internal/storage"
)

// SamplerConfig carries the streaming sampler's tuning knobs.
type SamplerConfig struct {
	MaxEntries  int `json:"max_entries,omitempty"`
	SampleEvery int `json:"sample_every,omitempty"`
	MaxBuffer   int `json:"max_buffer,omitempty"`
}

// Config stores healthpipe configuration.
type Config struct {
	// CacheBackend selects the checksum-cache store: "json" (default)
	// or "badger".
	CacheBackend string `json:"cache_backend,omitempty"`

	// DataDir is the root directory for the database and cache.
	// Supports ~ expansion. Defaults to ~/.local/share/healthpipe.
	DataDir string `json:"data_dir,omitempty"`

	// BatchSize bounds how many records share one insert transaction.
	BatchSize int `json:"batch_size,omitempty"`

	// LargeFileThreshold is the size in bytes above which change
	// detection hashes a bounded sample instead of the full content.
	LargeFileThreshold int64 `json:"large_file_threshold,omitempty"`

	Sampler SamplerConfig `json:"sampler,omitempty"`
}

// GetCacheBackend returns the configured backend, defaulting to "json".
func (c *Config) GetCacheBackend() string {
	if c.CacheBackend == "" {
		return "json"
	}
	return c.CacheBackend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "healthpipe.db")
}

// OpenCacheStore creates the checksum-cache store for the configured
// backend. Badger stores must be closed by the caller.
func (c *Config) OpenCacheStore() (checksum.Store, func() error, error) {
	switch c.GetCacheBackend() {
	case "json":
		store := checksum.NewFileStore(filepath.Join(c.GetDataDir(), "checksums.json"))
		return store, func() error { return nil }, nil
	case "badger":
		store, err := checksum.OpenBadgerStore(filepath.Join(c.GetDataDir(), "checksums.badger"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %q", c.CacheBackend)
	}
}

// Hasher builds the change-detection hasher with the configured
// large-file threshold.
func (c *Config) Hasher() checksum.Hasher {
	return checksum.Hasher{Threshold: c.LargeFileThreshold}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "healthpipe", "config.json")
}

// Load reads config from disk.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
