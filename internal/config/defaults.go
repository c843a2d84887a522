package config

const (
	defaultConfigPath         = "~/.config/tinywii/config.toml"
	defaultArchiveDir         = "~/tinywii/archive"
	defaultLogDir             = "~/.local/share/tinywii/logs"
	defaultDataDir            = "~/.local/share/tinywii"
	defaultCatalogFile        = "catalog.db"
	defaultFallbackPollMillis = 250
	defaultRedrawPerSecond    = 30
	defaultWatchDebounce      = 500
	defaultUpdateURL          = "https://github.com/mq1/TinyWiiBackupManager/releases/latest/download/version.txt"
	defaultTitlesURL          = "https://www.gametdb.com/titles.txt"
	defaultRedumpURL          = "http://redump.org/datfile/"
	defaultUpdateTimeout      = 10
	defaultUpdateMaxAttempts  = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	// DefaultSplitSize keeps every part below the FAT32 file size limit with
	// room for one WBFS block.
	DefaultSplitSize int64 = 4*1024*1024*1024 - 32*1024
	// MaxSplitSize is the FAT32 file size limit.
	MaxSplitSize int64 = 4*1024*1024*1024 - 1
	// MinSplitSize keeps split installs from producing thousands of parts.
	MinSplitSize int64 = 1024 * 1024

	envMountPoint = "TINYWII_MOUNT_POINT"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir: defaultArchiveDir,
			LogDir:     defaultLogDir,
			DataDir:    defaultDataDir,
		},
		Pipeline: Pipeline{
			FallbackPollMillis: defaultFallbackPollMillis,
			RedrawPerSecond:    defaultRedrawPerSecond,
		},
		Transfer: Transfer{
			SplitSizeBytes: DefaultSplitSize,
			VerifyArchive:  true,
		},
		Catalog: Catalog{
			Enabled: true,
		},
		Watch: Watch{
			Enabled:        true,
			DebounceMillis: defaultWatchDebounce,
		},
		Update: Update{
			Enabled:        true,
			URL:            defaultUpdateURL,
			TitlesURL:      defaultTitlesURL,
			RedumpURL:      defaultRedumpURL,
			TimeoutSeconds: defaultUpdateTimeout,
			MaxAttempts:    defaultUpdateMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
