package ops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tinywii/internal/disc"
	"tinywii/internal/fileutil"
	"tinywii/internal/library"
	"tinywii/internal/services"
)

// ArchiveOptions controls archive output.
type ArchiveOptions struct {
	Verify   bool
	Progress fileutil.Progress
}

// ArchiveResult describes a joined archive copy.
type ArchiveResult struct {
	Header disc.Header
	Path   string
	Bytes  int64
	XXH64  uint64
}

// ArchiveName is the file name used for an archived game.
func ArchiveName(header disc.Header, format disc.Format) string {
	ext := ".iso"
	switch format {
	case disc.FormatWBFS:
		ext = ".wbfs"
	case disc.FormatCISO:
		ext = ".ciso"
	}
	title := header.Title
	if title == "" {
		title = string(header.ID)
	}
	return library.DirName(title, header.ID) + ext
}

// Archive joins the split parts of the game in gameDir into one file. When
// dest is an existing directory the file is named by ArchiveName inside it.
// Partial output is removed on failure.
func Archive(ctx context.Context, gameDir, dest string, opts ArchiveOptions) (ArchiveResult, error) {
	src, err := disc.FindDiscFile(gameDir)
	if err != nil {
		return ArchiveResult{}, err
	}
	header, meta, err := disc.Read(src)
	if err != nil {
		return ArchiveResult{}, err
	}

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, ArchiveName(header, meta.Format))
	}
	if _, err := os.Stat(dest); err == nil {
		return ArchiveResult{}, services.Wrap(services.ErrIO, "ops", "archive", dest, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ArchiveResult{}, wrap("archive", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return ArchiveResult{}, wrap("archive", dest, err)
	}

	written, err := fileutil.JoinFiles(ctx, dest, meta.Parts, opts.Progress)
	if err != nil {
		return ArchiveResult{}, wrap("archive", dest, err)
	}
	if written != meta.Size {
		_ = os.Remove(dest)
		return ArchiveResult{}, services.Wrap(services.ErrIO, "ops", "archive",
			fmt.Sprintf("size mismatch: parts %d bytes, archive %d bytes", meta.Size, written), nil)
	}

	result := ArchiveResult{Header: header, Path: dest, Bytes: written}
	if !opts.Verify {
		return result, nil
	}
	want, _, err := fileutil.HashFiles(ctx, meta.Parts...)
	if err != nil {
		_ = os.Remove(dest)
		return ArchiveResult{}, wrap("archive verify", src, err)
	}
	got, _, err := fileutil.HashFiles(ctx, dest)
	if err != nil {
		_ = os.Remove(dest)
		return ArchiveResult{}, wrap("archive verify", dest, err)
	}
	if got != want {
		_ = os.Remove(dest)
		return ArchiveResult{}, services.Wrap(services.ErrIO, "ops", "archive verify",
			fmt.Sprintf("hash mismatch: parts %016x, archive %016x", want, got), nil)
	}
	result.XXH64 = got
	return result, nil
}
