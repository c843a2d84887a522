package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tinywii/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The mount point exists and already carries the wbfs/, games/ and apps/
// directories. The watcher and update check are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MountPoint = filepath.Join(base, "drive")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Catalog.Path = filepath.Join(base, "data", "catalog.db")
	cfgVal.Watch.Enabled = false
	cfgVal.Update.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{"wbfs", "games", "apps"} {
		if err := os.MkdirAll(filepath.Join(builder.cfg.Paths.MountPoint, dir), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithSplitSize overrides the transfer split size.
func WithSplitSize(size int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.SplitSizeBytes = size
	}
}

// WithoutCatalog disables the scan catalog.
func WithoutCatalog() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Enabled = false
	}
}

// WithThreads pins the pipeline budget.
func WithThreads(preloader, processor int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.PreloaderThreads = preloader
		b.cfg.Pipeline.ProcessorThreads = processor
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.MountPoint)
}
