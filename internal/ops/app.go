package ops

import (
	"context"
	"os"
	"path/filepath"

	"tinywii/internal/fileutil"
	"tinywii/internal/library"
	"tinywii/internal/services"
)

// CopyApp copies the homebrew app in srcDir to mount/apps/<name>, replacing
// an older copy. It returns the destination directory.
func CopyApp(ctx context.Context, srcDir, mount string) (string, error) {
	if !library.IsApp(srcDir) {
		return "", services.Wrap(services.ErrFormat, "ops", "copy app", srcDir+": no boot.dol or boot.elf", nil)
	}
	name := filepath.Base(filepath.Clean(srcDir))
	dest := filepath.Join(mount, library.AppsDir, name)
	staging := filepath.Join(mount, library.AppsDir, "."+name+".partial")
	if err := os.RemoveAll(staging); err != nil {
		return "", wrap("copy app", staging, err)
	}
	if err := fileutil.CopyDir(ctx, srcDir, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", wrap("copy app", srcDir, err)
	}
	if err := os.RemoveAll(dest); err != nil {
		_ = os.RemoveAll(staging)
		return "", wrap("copy app", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		_ = os.RemoveAll(staging)
		return "", wrap("copy app", dest, err)
	}
	return dest, nil
}
