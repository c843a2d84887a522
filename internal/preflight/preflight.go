package preflight

import (
	"context"

	"tinywii/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the drive and local directory checks for cfg. The archive
// directory is only checked when it already exists.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	mount := CheckDirectoryAccess("Drive", cfg.Paths.MountPoint)
	results = append(results, mount)
	if mount.Passed {
		results = append(results,
			CheckDriveLayout(cfg.Paths.MountPoint),
			CheckFilesystem(ctx, cfg.Paths.MountPoint, cfg.Transfer.SplitSizeBytes),
		)
	}

	if dirExists(cfg.Paths.ArchiveDir) {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}
	if cfg.Catalog.Enabled && dirExists(cfg.Paths.DataDir) {
		results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
