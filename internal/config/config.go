// Package config loads engine configuration from .codegraph/config.yml
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full engine configuration.
type Config struct {
	// RootDir is the repository root to ingest and watch.
	RootDir string `mapstructure:"root_dir"`
	// SnapshotPath is the SQLite snapshot location.
	SnapshotPath string `mapstructure:"snapshot_path"`

	Ingest   IngestConfig   `mapstructure:"ingest"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
}

// IngestConfig controls the ingestion worker pool.
type IngestConfig struct {
	// Workers is the parser pool size. Zero means one per CPU.
	Workers int `mapstructure:"workers"`
}

// ResolverConfig controls symbol resolution.
type ResolverConfig struct {
	// CollisionPolicy is last-wins or first-wins for qualified-name
	// collisions.
	CollisionPolicy string `mapstructure:"collision_policy"`
	// CacheCapacity bounds the import resolution cache.
	CacheCapacity int `mapstructure:"cache_capacity"`
	// Workers bounds import-resolution parallelism.
	Workers int `mapstructure:"workers"`
	// CrossLanguage toggles canonical-name linking across languages.
	CrossLanguage bool `mapstructure:"cross_language"`
}

// WatcherConfig controls the file watcher.
type WatcherConfig struct {
	// DebounceMS is the quiet period before a change batch is applied.
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RootDir:      ".",
		SnapshotPath: ".codegraph/graph.db",
		Resolver: ResolverConfig{
			CollisionPolicy: "last-wins",
			CacheCapacity:   8192,
			Workers:         4,
			CrossLanguage:   true,
		},
		Watcher: WatcherConfig{DebounceMS: 500},
	}
}

// Load reads configuration from the given file, or from
// .codegraph/config.yml under the working directory when path is empty.
// A missing default config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("root_dir", defaults.RootDir)
	v.SetDefault("snapshot_path", defaults.SnapshotPath)
	v.SetDefault("ingest.workers", defaults.Ingest.Workers)
	v.SetDefault("resolver.collision_policy", defaults.Resolver.CollisionPolicy)
	v.SetDefault("resolver.cache_capacity", defaults.Resolver.CacheCapacity)
	v.SetDefault("resolver.workers", defaults.Resolver.Workers)
	v.SetDefault("resolver.cross_language", defaults.Resolver.CrossLanguage)
	v.SetDefault("watcher.debounce_ms", defaults.Watcher.DebounceMS)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".codegraph")
	}

	v.SetEnvPrefix("CODEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Resolver.CollisionPolicy {
	case "last-wins", "first-wins":
	default:
		return fmt.Errorf("invalid resolver.collision_policy %q (want last-wins or first-wins)", c.Resolver.CollisionPolicy)
	}
	if c.Resolver.CacheCapacity < 0 {
		return errors.New("resolver.cache_capacity must not be negative")
	}
	if c.Watcher.DebounceMS < 0 {
		return errors.New("watcher.debounce_ms must not be negative")
	}
	return nil
}
