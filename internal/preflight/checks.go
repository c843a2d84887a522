package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"tinywii/internal/config"
	"tinywii/internal/library"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDriveLayout reports which of wbfs/, games/ and apps/ exist. Missing
// directories are created on first install, so the check only fails when one
// of them is a regular file.
func CheckDriveLayout(mount string) Result {
	const name = "Drive layout"
	var missing []string
	for _, dir := range []string{library.WBFSDir, library.GamesDir, library.AppsDir} {
		info, err := os.Stat(filepath.Join(mount, dir))
		switch {
		case os.IsNotExist(err):
			missing = append(missing, dir)
		case err != nil:
			return Result{Name: name, Detail: fmt.Sprintf("%s: %v", dir, err)}
		case !info.IsDir():
			return Result{Name: name, Detail: fmt.Sprintf("%s exists but is not a directory", dir)}
		}
	}
	if len(missing) > 0 {
		return Result{Name: name, Passed: true, Detail: "missing " + strings.Join(missing, ", ") + " (created on install)"}
	}
	return Result{Name: name, Passed: true, Detail: "wbfs, games, apps present"}
}

// CheckFilesystem fails when the drive is FAT formatted and the configured
// split size would produce files FAT32 cannot hold.
func CheckFilesystem(ctx context.Context, mount string, splitSize int64) Result {
	const name = "Filesystem"
	usage, err := library.DriveUsage(ctx, mount)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	fs := strings.ToLower(usage.Filesystem)
	detail := fmt.Sprintf("%s, %s free of %s", displayFS(fs), humanize.IBytes(usage.Free), humanize.IBytes(usage.Total))
	if isFAT(fs) && (splitSize <= 0 || splitSize > config.MaxSplitSize) {
		return Result{Name: name, Detail: detail + " (split size exceeds the FAT32 file limit)"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckFreeSpace verifies that path has room for need bytes.
func CheckFreeSpace(ctx context.Context, path string, need int64) Result {
	const name = "Free space"
	usage, err := library.DriveUsage(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if need > 0 && usage.Free < uint64(need) {
		return Result{Name: name, Detail: fmt.Sprintf("need %s, only %s free on %s", humanize.IBytes(uint64(need)), humanize.IBytes(usage.Free), path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free on %s", humanize.IBytes(usage.Free), path)}
}

func isFAT(fs string) bool {
	switch fs {
	case "vfat", "msdos", "fat", "fat32", "msdosfs":
		return true
	default:
		return false
	}
}

func displayFS(fs string) string {
	if fs == "" {
		return "unknown filesystem"
	}
	return fs
}

func dirExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
