// Package config resolves where the index store lives and loads the
// project-level tunables (watcher debounce/batch sizing, scan ignore
// globs) that govern the rest of the core.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"runtime"

	"github.com/marlinhq/indexd/internal/ferr"
)

const (
	envDBPath  = "INDEXD_DB_PATH"
	envLogLvl  = "INDEXD_LOG_LEVEL"
	appDirName = "indexd"
)

// Config is the resolved runtime configuration: where the store lives.
type Config struct {
	DBPath   string
	LogLevel string
}

// Load resolves the store path from the environment, following the
// priority documented in SPEC_FULL.md / spec.md §6:
//
//  1. INDEXD_DB_PATH env override (explicit, always respected)
//  2. a per-working-directory hash under the platform data directory
//  3. a last-resort index_<hash>.db (the same file name) relative to the
//     working directory
func Load() (*Config, error) {
	cfg := &Config{LogLevel: os.Getenv(envLogLvl)}

	if override := os.Getenv(envDBPath); override != "" {
		if err := os.MkdirAll(filepath.Dir(override), 0o755); err != nil {
			return nil, ferr.Wrap(ferr.Config, err, "create dir for %s override", envDBPath)
		}
		cfg.DBPath = override
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, ferr.Wrap(ferr.Config, err, "resolve working directory")
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(cwd))
	fileName := fmt.Sprintf("index_%016x.db", h.Sum64())

	if dir, ok := dataDir(); ok {
		full := filepath.Join(dir, appDirName)
		if err := os.MkdirAll(full, 0o755); err == nil {
			cfg.DBPath = filepath.Join(full, fileName)
			return cfg, nil
		}
	}

	cfg.DBPath = fileName
	return cfg, nil
}

// OpenAt builds a Config addressing an explicit store path, bypassing
// environment resolution entirely -- used for tests and headless tools.
func OpenAt(path string) *Config {
	return &Config{DBPath: path}
}

// dataDir returns the platform's per-user application-data directory, if
// one can be determined from the environment.
func dataDir() (string, bool) {
	switch runtime.GOOS {
	case "windows":
		if v := os.Getenv("APPDATA"); v != "" {
			return v, true
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			return filepath.Join(home, "Library", "Application Support"), true
		}
	default:
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return v, true
		}
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			return filepath.Join(home, ".local", "share"), true
		}
	}
	return "", false
}
