package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains drive and local directory configuration.
type Paths struct {
	MountPoint string `toml:"mount_point"`
	ArchiveDir string `toml:"archive_dir"`
	LogDir     string `toml:"log_dir"`
	DataDir    string `toml:"data_dir"`
}

// Pipeline sizes the background worker pools and controls UI refresh.
type Pipeline struct {
	// PreloaderThreads and ProcessorThreads override the CPU-derived budget.
	// Zero selects the automatic value.
	PreloaderThreads int `toml:"preloader_threads"`
	ProcessorThreads int `toml:"processor_threads"`
	// FallbackPollMillis is the UI poll interval used when no wake arrives.
	FallbackPollMillis int `toml:"fallback_poll_ms"`
	// RedrawPerSecond caps how often completions request a repaint.
	RedrawPerSecond int `toml:"redraw_per_second"`
}

// Transfer contains options for installing and archiving disc images.
type Transfer struct {
	SplitSizeBytes int64 `toml:"split_size_bytes"`
	RemoveSources  bool  `toml:"remove_sources"`
	VerifyArchive  bool  `toml:"verify_archive"`
}

// Catalog contains configuration for the local scan cache.
type Catalog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Watch controls rescans triggered by changes on the mount point.
type Watch struct {
	Enabled        bool `toml:"enabled"`
	DebounceMillis int  `toml:"debounce_ms"`
}

// Update contains configuration for the release check.
type Update struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	TitlesURL      string `toml:"titles_url"`
	// RedumpURL is the base of the redump datfile downloads; the system slug
	// is appended.
	RedumpURL      string `toml:"redump_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tinywii.
//
// Configuration sections by subsystem:
//   - Paths: drive mount point and local directories
//   - Pipeline: worker pool sizes and UI refresh cadence
//   - Transfer: split size and source handling for installs
//   - Catalog: SQLite cache of scanned games
//   - Watch: filesystem watcher on the drive layout
//   - Update: release check, titles and redump database downloads
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Transfer Transfer `toml:"transfer"`
	Catalog  Catalog  `toml:"catalog"`
	Watch    Watch    `toml:"watch"`
	Update   Update   `toml:"update"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tinywii.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories the application writes to.
// The mount point is never created; a missing drive is reported by preflight.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Catalog.Enabled && strings.TrimSpace(c.Catalog.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Catalog.Path), 0o755); err != nil {
			return fmt.Errorf("create catalog directory: %w", err)
		}
	}
	return nil
}

// RequireMountPoint reports an error when no drive has been configured.
func (c *Config) RequireMountPoint() error {
	if strings.TrimSpace(c.Paths.MountPoint) == "" {
		return fmt.Errorf("paths.mount_point is not set. Set %s, pass --mount, or edit the config file (create with 'tinywii config init')", envMountPoint)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
