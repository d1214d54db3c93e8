package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/hush/internal/store"
)

// Config is the persistent application configuration
type Config struct {
	// DataDir holds the database, logs and event log
	DataDir string `json:"data_dir"`

	Storage  StorageConfig  `json:"storage"`
	Watch    WatchConfig    `json:"watch"`
	Cache    CacheConfig    `json:"cache"`
	Identity IdentityConfig `json:"identity"`
	UI       UIConfig       `json:"ui"`

	// BlockedAuthors are always hidden and never written to the hide list
	BlockedAuthors []string `json:"blocked_authors"`

	// ProfilesDir holds per-site YAML profiles; Profile forces one by name
	ProfilesDir string `json:"profiles_dir,omitempty"`
	Profile     string `json:"profile,omitempty"`

	// KeyVersion qualifies persisted record keys ("hush:<version>:...")
	KeyVersion string `json:"key_version"`

	Debug bool `json:"debug"`
}

// StorageConfig selects the KV backend
type StorageConfig struct {
	Backend string `json:"backend"`        // "sqlite" or "pebble"
	Path    string `json:"path,omitempty"` // defaults under DataDir
}

// WatchConfig tunes the change watcher
type WatchConfig struct {
	DebounceMs    int `json:"debounce_ms"`
	BulkThreshold int `json:"bulk_threshold"`
}

// CacheConfig bounds the processed-item cache
type CacheConfig struct {
	Capacity int `json:"capacity"`
}

// IdentityConfig controls item identifier derivation
type IdentityConfig struct {
	TextPrefixRunes int  `json:"text_prefix_runes"`
	UsePermalink    bool `json:"use_permalink"`
}

// UIConfig holds TUI preferences
type UIConfig struct {
	ShowHidden bool `json:"show_hidden"` // list hidden rows dimmed instead of omitting them
	DebugRing  int  `json:"debug_ring"`  // events kept for the debug overlay
}

// Dir returns the default hush directory (~/.hush)
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hush")
}

// DefaultPath returns the path to the default config file
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: Dir(),
		Storage: StorageConfig{
			Backend: store.BackendSQLite,
		},
		Watch: WatchConfig{
			DebounceMs:    120,
			BulkThreshold: 30,
		},
		Cache: CacheConfig{
			Capacity: 5000,
		},
		Identity: IdentityConfig{
			TextPrefixRunes: 100,
			UsePermalink:    true,
		},
		UI: UIConfig{
			ShowHidden: false,
			DebugRing:  512,
		},
		BlockedAuthors: []string{},
		KeyVersion:     "v2",
	}
}

// Load reads config from path (DefaultPath when empty), or returns
// defaults when the file does not exist. Environment overrides are applied
// last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to path (DefaultPath when empty)
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overrides fields from HUSH_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("HUSH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v := os.Getenv("HUSH_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("HUSH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("HUSH_BLOCKED_AUTHORS"); v != "" {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				c.BlockedAuthors = append(c.BlockedAuthors, a)
			}
		}
	}
}

// Validate rejects settings the rest of hush cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case store.BackendSQLite, store.BackendPebble:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Watch.DebounceMs <= 0 {
		return fmt.Errorf("watch.debounce_ms must be positive, got %d", c.Watch.DebounceMs)
	}
	if c.Watch.BulkThreshold <= 0 {
		return fmt.Errorf("watch.bulk_threshold must be positive, got %d", c.Watch.BulkThreshold)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Identity.TextPrefixRunes <= 0 {
		return fmt.Errorf("identity.text_prefix_runes must be positive, got %d", c.Identity.TextPrefixRunes)
	}
	if strings.TrimSpace(c.KeyVersion) == "" {
		return fmt.Errorf("key_version must not be empty")
	}
	return nil
}

// Debounce returns the watcher quiet period
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// StoragePath returns the configured backend path or its default under DataDir
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == store.BackendPebble {
		return filepath.Join(c.DataDir, "hidelist.pebble")
	}
	return filepath.Join(c.DataDir, "hush.db")
}

// LogDir returns the human log directory
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// EventsPath returns the JSONL event log path
func (c *Config) EventsPath() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}
