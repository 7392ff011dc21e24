// Package config loads the TOML configuration that wires the scanner,
// store, engines, and realtime server together.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"symgraph/internal/engine/extract"
)

type Config struct {
	Version       int           `toml:"version"`
	Project       Project       `toml:"project"`
	Paths         Paths         `toml:"paths"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Exclude       Exclude       `toml:"exclude"`
	Languages     []string      `toml:"languages"`
	Inference     Inference     `toml:"inference"`
	Query         Query         `toml:"query"`
	Realtime      Realtime      `toml:"realtime"`
	Observability Observability `toml:"observability"`
}

type Project struct {
	Name string `toml:"name"`
	Root string `toml:"root"`
}

type Paths struct {
	StateDir string `toml:"state_dir"`
}

type Database struct {
	// Driver selects the store backend: "memory" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	Paths    []string      `toml:"paths"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Inference struct {
	Parallel       bool          `toml:"parallel"`
	MaxConcurrency int           `toml:"max_concurrency"`
	CacheSize      int           `toml:"cache_size"`
	CacheTTL       time.Duration `toml:"cache_ttl"`
	AutoInference  bool          `toml:"auto_inference"`
	Rules          []string      `toml:"rules"`
}

type Query struct {
	CacheSize int           `toml:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl"`
	Timeout   time.Duration `toml:"timeout"`
}

type Realtime struct {
	Enabled        bool          `toml:"enabled"`
	Address        string        `toml:"address"`
	MaxConnections int           `toml:"max_connections"`
	PollInterval   time.Duration `toml:"poll_interval"`
	QueryTimeout   time.Duration `toml:"query_timeout"`
	MaxConcurrency int           `toml:"max_concurrency"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	TraceEndpoint string `toml:"trace_endpoint"`
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a runnable config without a file on disk.
func Default(projectRoot string) *Config {
	cfg := &Config{Project: Project{Root: projectRoot}}
	ApplyDefaults(cfg)
	return cfg
}

func ApplyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Project.Root) == "" {
		cfg.Project.Root = "."
	}
	if strings.TrimSpace(cfg.Project.Name) == "" {
		abs, err := filepath.Abs(cfg.Project.Root)
		if err != nil {
			abs = cfg.Project.Root
		}
		cfg.Project.Name = filepath.Base(abs)
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = "data/state"
	}

	if strings.TrimSpace(cfg.DB.Driver) == "" {
		cfg.DB.Driver = "memory"
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = filepath.Join(cfg.Paths.StateDir, "graph.db")
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{cfg.Project.Root}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules", "vendor", "dist", "build"}
	}

	if cfg.Inference.MaxConcurrency <= 0 {
		cfg.Inference.MaxConcurrency = 4
	}
	if cfg.Inference.CacheSize <= 0 {
		cfg.Inference.CacheSize = 512
	}
	if cfg.Inference.CacheTTL <= 0 {
		cfg.Inference.CacheTTL = 5 * time.Minute
	}

	if cfg.Query.CacheSize <= 0 {
		cfg.Query.CacheSize = 256
	}
	if cfg.Query.CacheTTL <= 0 {
		cfg.Query.CacheTTL = time.Minute
	}
	if cfg.Query.Timeout <= 0 {
		cfg.Query.Timeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.Realtime.Address) == "" {
		cfg.Realtime.Address = ":8780"
	}
	if cfg.Realtime.MaxConnections <= 0 {
		cfg.Realtime.MaxConnections = 100
	}
	if cfg.Realtime.PollInterval <= 0 {
		cfg.Realtime.PollInterval = 5 * time.Second
	}
	if cfg.Realtime.QueryTimeout <= 0 {
		cfg.Realtime.QueryTimeout = 5 * time.Minute
	}
	if cfg.Realtime.MaxConcurrency <= 0 {
		cfg.Realtime.MaxConcurrency = 1
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = ":8781"
	}
}

func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}

	switch cfg.DB.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown db driver %q, want memory or sqlite", cfg.DB.Driver)
	}

	known := make(map[string]bool)
	for _, id := range extract.LanguageIDs() {
		known[id] = true
	}
	for _, lang := range cfg.Languages {
		if !known[strings.ToLower(lang)] {
			return fmt.Errorf("unknown language %q, supported: %s",
				lang, strings.Join(extract.LanguageIDs(), ", "))
		}
	}

	if cfg.Realtime.PollInterval >= cfg.Realtime.QueryTimeout {
		return fmt.Errorf("realtime poll_interval (%s) must be shorter than query_timeout (%s)",
			cfg.Realtime.PollInterval, cfg.Realtime.QueryTimeout)
	}
	return nil
}
