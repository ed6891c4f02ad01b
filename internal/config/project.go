package config

import (
	"strings"

	"github.com/spf13/viper"
)

// ProjectConfig holds the tunables a host CLI or library consumer may want
// to override per workspace: watcher pacing and scanner ignore globs.
// Loaded from `.indexd/config.yml` with INDEXD_-prefixed env overrides,
// following the teacher's layered viper loader (env > file > defaults).
type ProjectConfig struct {
	Watcher WatcherTuning `mapstructure:"watcher"`
	Scanner ScannerTuning `mapstructure:"scanner"`
}

// WatcherTuning mirrors watcher.Config's fields so they can be overridden
// from a project config file without the watcher package depending on viper.
type WatcherTuning struct {
	DebounceMs     int `mapstructure:"debounce_ms"`
	BatchSize      int `mapstructure:"batch_size"`
	MaxQueueSize   int `mapstructure:"max_queue_size"`
	DrainTimeoutMs int `mapstructure:"drain_timeout_ms"`
}

// ScannerTuning holds glob patterns of paths the scanner should not index,
// evaluated in addition to the fixed .db/-wal/-shm suffix skip.
type ScannerTuning struct {
	IgnoreGlobs []string `mapstructure:"ignore"`
}

// DefaultProjectConfig returns the built-in defaults, matching
// watcher.DefaultConfig's numbers so the two stay in lockstep when no
// project file overrides them.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Watcher: WatcherTuning{
			DebounceMs:     100,
			BatchSize:      1000,
			MaxQueueSize:   100_000,
			DrainTimeoutMs: 5000,
		},
		Scanner: ScannerTuning{
			IgnoreGlobs: []string{
				".git/**", "node_modules/**", ".indexd/**",
			},
		},
	}
}

// LoadProjectConfig reads `<rootDir>/.indexd/config.yml`, falling back to
// defaults when absent, with INDEXD_* environment variables taking highest
// priority (e.g. INDEXD_WATCHER_DEBOUNCE_MS).
func LoadProjectConfig(rootDir string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir + "/.indexd")

	v.SetEnvPrefix("INDEXD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	def := DefaultProjectConfig()
	v.SetDefault("watcher.debounce_ms", def.Watcher.DebounceMs)
	v.SetDefault("watcher.batch_size", def.Watcher.BatchSize)
	v.SetDefault("watcher.max_queue_size", def.Watcher.MaxQueueSize)
	v.SetDefault("watcher.drain_timeout_ms", def.Watcher.DrainTimeoutMs)
	v.SetDefault("scanner.ignore", def.Scanner.IgnoreGlobs)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var out ProjectConfig
	if err := v.Unmarshal(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
