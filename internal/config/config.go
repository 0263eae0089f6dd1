// Package config handles global configuration and well-known paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/texkit/bibgen/internal/cite"
)

// Config represents configuration stored in ~/.config/bibgen/config.yml.
// Flags override environment variables, which override this file.
type Config struct {
	APIBaseURL     string  `yaml:"api_base_url,omitempty"`
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	RateLimit      float64 `yaml:"rate_limit,omitempty"`
	Canonical      string  `yaml:"canonical,omitempty"` // arxiv, texkey or doi
	Workers        int     `yaml:"workers,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "bibgen"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// NoInspireFile is the user-curated supplemental bibliography, looked
	// up in the working directory.
	NoInspireFile = "noinspire.bib"

	// BibgenDir holds per-directory state next to the document.
	BibgenDir = ".bibgen"
	// CacheDBFile is the resolver cache database inside BibgenDir.
	CacheDBFile = "cache.db"

	// EnvAPIURL overrides the API base URL (also read from .env).
	EnvAPIURL = "BIBGEN_API_URL"
)

// DefaultWorkers is the lookup concurrency used when not configured.
const DefaultWorkers = 4

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/bibgen/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Load reads the global configuration file. Returns a zero config (not an
// error) if the file doesn't exist.
func Load() (*Config, error) {
	path := GlobalConfigPath()
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Canonical != "" {
		if _, err := cite.ParseType(cfg.Canonical); err != nil {
			return nil, fmt.Errorf("config canonical: %w", err)
		}
	}

	return &cfg, nil
}

// BaseURL resolves the API base URL: environment first, then config file.
// Empty means the client default.
func (c *Config) BaseURL() string {
	if url := strings.TrimSpace(os.Getenv(EnvAPIURL)); url != "" {
		return url
	}
	return c.APIBaseURL
}

// Priority resolves the canonical priority order, with the flag value
// taking precedence over the config file.
func (c *Config) Priority(flagValue string) ([]cite.Type, error) {
	value := flagValue
	if value == "" {
		value = c.Canonical
	}
	if value == "" {
		return cite.DefaultPriority, nil
	}
	typ, err := cite.ParseType(value)
	if err != nil {
		return nil, err
	}
	return cite.PriorityFor(typ), nil
}

// CachePath returns the resolver cache database path for a document in dir.
func CachePath(dir string) string {
	return filepath.Join(dir, BibgenDir, CacheDBFile)
}

// SupplementalPath returns the supplemental bibliography path for dir.
func SupplementalPath(dir string) string {
	return filepath.Join(dir, NoInspireFile)
}
