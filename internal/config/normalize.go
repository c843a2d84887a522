package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeTransfer()
	c.normalizeWatch()
	c.normalizeUpdate()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.MountPoint) == "" {
		if value, ok := os.LookupEnv(envMountPoint); ok {
			c.Paths.MountPoint = value
		}
	}
	var err error
	if c.Paths.MountPoint, err = expandPath(strings.TrimSpace(c.Paths.MountPoint)); err != nil {
		return fmt.Errorf("paths.mount_point: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	if strings.TrimSpace(c.Catalog.Path) == "" {
		c.Catalog.Path = filepath.Join(c.Paths.DataDir, defaultCatalogFile)
	}
	var err error
	if c.Catalog.Path, err = expandPath(c.Catalog.Path); err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.FallbackPollMillis == 0 {
		c.Pipeline.FallbackPollMillis = defaultFallbackPollMillis
	}
	if c.Pipeline.RedrawPerSecond == 0 {
		c.Pipeline.RedrawPerSecond = defaultRedrawPerSecond
	}
}

func (c *Config) normalizeTransfer() {
	if c.Transfer.SplitSizeBytes == 0 {
		c.Transfer.SplitSizeBytes = DefaultSplitSize
	}
}

func (c *Config) normalizeWatch() {
	if c.Watch.DebounceMillis == 0 {
		c.Watch.DebounceMillis = defaultWatchDebounce
	}
}

func (c *Config) normalizeUpdate() {
	c.Update.URL = strings.TrimSpace(c.Update.URL)
	if c.Update.URL == "" {
		c.Update.URL = defaultUpdateURL
	}
	c.Update.TitlesURL = strings.TrimSpace(c.Update.TitlesURL)
	if c.Update.TitlesURL == "" {
		c.Update.TitlesURL = defaultTitlesURL
	}
	c.Update.RedumpURL = strings.TrimSpace(c.Update.RedumpURL)
	if c.Update.RedumpURL == "" {
		c.Update.RedumpURL = defaultRedumpURL
	}
	if c.Update.TimeoutSeconds == 0 {
		c.Update.TimeoutSeconds = defaultUpdateTimeout
	}
	if c.Update.MaxAttempts == 0 {
		c.Update.MaxAttempts = defaultUpdateMaxAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
