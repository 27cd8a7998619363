// Package config resolves and persists the corpus configuration file:
// the watched folders, indexing settings, and the on-disk layout the
// Lifecycle State Machine is built from.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// CPUThrottle selects the indexing worker pool's size relative to
// runtime.NumCPU().
type CPUThrottle string

const (
	ThrottleLow    CPUThrottle = "low"
	ThrottleMedium CPUThrottle = "medium"
	ThrottleHigh   CPUThrottle = "high"
)

// Workers maps a throttle level to a worker-pool size, with a floor
// of 1 so a single-core host never gets a zero-worker pool.
func (t CPUThrottle) Workers() int {
	cpus := runtime.NumCPU()
	switch t {
	case ThrottleLow:
		return 1
	case ThrottleHigh:
		return cpus
	case ThrottleMedium, "":
		if w := cpus / 2; w > 0 {
			return w
		}
		return 1
	default:
		return 1
	}
}

// Settings is the `settings` object inside config.json.
type Settings struct {
	ExcludePatterns    []string    `json:"excludePatterns"`
	EmbeddingBatchSize int         `json:"embeddingBatchSize"`
	CPUThrottle        CPUThrottle `json:"cpuThrottle"`
}

// Config is the corpus configuration persisted as config.json at the
// root of the corpus directory.
type Config struct {
	WatchedFolders []string `json:"watchedFolders"`
	Settings       Settings `json:"settings"`
}

// defaultExcludePatterns are always excluded from watched folders,
// regardless of user configuration.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.docwell/**",
	"**/*.tmp",
	"**/*.swp",
}

// New returns a Config with sensible defaults and no watched folders.
func New() *Config {
	return &Config{
		WatchedFolders: []string{},
		Settings: Settings{
			ExcludePatterns:    append([]string{}, defaultExcludePatterns...),
			EmbeddingBatchSize: 32,
			CPUThrottle:        ThrottleMedium,
		},
	}
}

// CorpusDir resolves the on-disk directory a given set of watched
// folders' corpus lives under: a stable hash of the sorted, absolute
// folder list nested under the user's XDG data directory, so the same
// folder set always resolves to the same corpus regardless of the
// order folders were supplied in.
func CorpusDir(watchedFolders []string) (string, error) {
	normalized := make([]string, len(watchedFolders))
	for i, f := range watchedFolders {
		abs, err := filepath.Abs(f)
		if err != nil {
			return "", fmt.Errorf("resolving watched folder %q: %w", f, err)
		}
		normalized[i] = abs
	}
	sort.Strings(normalized)

	base, err := dataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "docwell", hashFolders(normalized)), nil
}

func hashFolders(folders []string) string {
	h := sha256.Sum256([]byte(strings.Join(folders, "\x00")))
	return hex.EncodeToString(h[:])[:16]
}

// dataHome returns $XDG_DATA_HOME, or ~/.local/share if unset.
func dataHome() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// ConfigPath returns the config.json path inside a corpus directory.
func ConfigPath(corpusDir string) string {
	return filepath.Join(corpusDir, "config.json")
}

// Load reads config.json from corpusDir, applies DOCWELL_* environment
// overrides, and validates the result. It is an error for the file not
// to exist; corpus directories are created by `docwell init`, not
// materialized implicitly on load.
func Load(corpusDir string) (*Config, error) {
	path := ConfigPath(corpusDir)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to corpusDir/config.json, creating corpusDir if
// necessary.
func (c *Config) Save(corpusDir string) error {
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return fmt.Errorf("creating corpus dir %s: %w", corpusDir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(corpusDir), data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Exists reports whether corpusDir already has a config.json.
func Exists(corpusDir string) bool {
	_, err := os.Stat(ConfigPath(corpusDir))
	return err == nil
}

// applyEnvOverrides applies DOCWELL_* environment variable overrides,
// highest precedence over the persisted file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCWELL_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Settings.EmbeddingBatchSize = n
		}
	}
	if v := os.Getenv("DOCWELL_CPU_THROTTLE"); v != "" {
		switch CPUThrottle(strings.ToLower(v)) {
		case ThrottleLow, ThrottleMedium, ThrottleHigh:
			c.Settings.CPUThrottle = CPUThrottle(strings.ToLower(v))
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.WatchedFolders) == 0 {
		return fmt.Errorf("watchedFolders must not be empty")
	}
	for _, f := range c.WatchedFolders {
		info, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("watched folder %q: %w", f, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watched folder %q is not a directory", f)
		}
	}
	if c.Settings.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("settings.embeddingBatchSize must be positive, got %d", c.Settings.EmbeddingBatchSize)
	}
	switch c.Settings.CPUThrottle {
	case ThrottleLow, ThrottleMedium, ThrottleHigh:
	default:
		return fmt.Errorf("settings.cpuThrottle must be 'low', 'medium', or 'high', got %q", c.Settings.CPUThrottle)
	}
	return nil
}

// FindWatchedFolder reports whether path is contained in (or equal
// to) one of the configured watched folders.
func (c *Config) FindWatchedFolder(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, folder := range c.WatchedFolders {
		folderAbs, err := filepath.Abs(folder)
		if err != nil {
			continue
		}
		if abs == folderAbs || strings.HasPrefix(abs, folderAbs+string(filepath.Separator)) {
			return folderAbs, true
		}
	}
	return "", false
}
