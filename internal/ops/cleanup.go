package ops

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tinywii/internal/library"
	"tinywii/internal/logging"
)

// CleanResult lists leftovers removed by CleanPartials and the paths that
// could not be removed.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a leftover path with its removal error.
type CleanupError struct {
	Path string
	Err  error
}

// CleanPartials removes interrupted app copies (apps/.<name>.partial) and
// temporary downloads (*.tmp at the mount root) older than maxAge.
func CleanPartials(ctx context.Context, mount string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	var result CleanResult
	if strings.TrimSpace(mount) == "" {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cutoff := time.Now().Add(-maxAge)

	sweep := func(dir string, match func(os.DirEntry) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Err: err})
			}
			return
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				return
			}
			if !match(entry) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Err: err})
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Err: err})
				logger.Warn("failed to remove leftover", logging.String("path", path), logging.Error(err))
				continue
			}
			result.Removed = append(result.Removed, path)
			logger.Info("removed leftover",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
			)
		}
	}

	sweep(filepath.Join(mount, library.AppsDir), func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), ".") && strings.HasSuffix(e.Name(), ".partial")
	})
	sweep(mount, func(e os.DirEntry) bool {
		return !e.IsDir() && strings.HasSuffix(e.Name(), ".tmp")
	})
	return result
}
