package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tinywii/internal/disc"
	"tinywii/internal/fileutil"
	"tinywii/internal/library"
	"tinywii/internal/services"
)

// InstallOptions controls how a disc image is written to the drive.
type InstallOptions struct {
	// SplitSize caps each part file. Zero disables splitting.
	SplitSize    int64
	RemoveSource bool
	Progress     fileutil.Progress
}

// InstallResult describes an installed game.
type InstallResult struct {
	Header disc.Header
	Dir    string
	Files  []string
	Bytes  int64
}

// Install copies the disc image at src into the drive layout under mount.
// Wii images go to wbfs/Title [ID]/ID.wbfs (split as .wbf1, .wbf2) or
// ID.iso (split as .part0.iso, .part1.iso). GameCube images go to
// games/Title [ID]/game.iso, or disc2.iso for the second disc.
func Install(ctx context.Context, src, mount string, opts InstallOptions) (InstallResult, error) {
	header, meta, err := disc.Read(src)
	if err != nil {
		return InstallResult{}, err
	}
	title := header.Title
	if title == "" {
		title = string(header.ID)
	}
	dir := library.GameDir(mount, header.Console, title, header.ID)
	target := newInstallTarget(dir, header, meta.Format, opts.SplitSize)

	for _, existing := range target.candidates() {
		if _, err := os.Stat(existing); err == nil {
			return InstallResult{}, services.Wrap(services.ErrIO, "ops", "install", existing, ErrAlreadyInstalled)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return InstallResult{}, wrap("install", existing, err)
		}
	}

	createdDir := false
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		createdDir = true
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return InstallResult{}, wrap("install", dir, err)
	}

	files, written, err := copyParts(ctx, meta, target, opts.Progress)
	if err != nil {
		if createdDir {
			_ = os.RemoveAll(dir)
		}
		return InstallResult{}, wrap("install", src, err)
	}

	if opts.RemoveSource {
		for _, part := range meta.Parts {
			if err := os.Remove(part); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return InstallResult{}, wrap("install", "remove source "+part, err)
			}
		}
	}
	return InstallResult{Header: header, Dir: dir, Files: files, Bytes: written}, nil
}

type installTarget struct {
	base      string
	format    disc.Format
	splitSize int64
	single    string
}

func newInstallTarget(dir string, header disc.Header, format disc.Format, splitSize int64) installTarget {
	if header.Console == disc.ConsoleGameCube {
		name := "game"
		if header.DiscNumber > 0 {
			name = fmt.Sprintf("disc%d", header.DiscNumber+1)
		}
		ext := ".iso"
		if format == disc.FormatCISO {
			ext = ".ciso"
		}
		return installTarget{single: filepath.Join(dir, name+ext), splitSize: splitSize}
	}
	base := filepath.Join(dir, string(header.ID))
	switch format {
	case disc.FormatWBFS:
		return installTarget{base: base, format: disc.FormatWBFS, splitSize: splitSize}
	case disc.FormatCISO:
		return installTarget{single: base + ".ciso", splitSize: splitSize}
	default:
		return installTarget{base: base, format: disc.FormatISO, splitSize: splitSize}
	}
}

// first is the path a completed install always has.
func (t installTarget) first() string {
	if t.single != "" {
		return t.single
	}
	if t.format == disc.FormatISO {
		return t.base + ".iso"
	}
	return disc.PartName(t.base, t.format, 0)
}

// candidates lists the paths whose presence means the game is installed.
func (t installTarget) candidates() []string {
	if t.format == disc.FormatISO && t.single == "" {
		return []string{t.first(), disc.PartName(t.base, disc.FormatISO, 0)}
	}
	return []string{t.first()}
}

func copyParts(ctx context.Context, meta disc.Meta, target installTarget, progress fileutil.Progress) ([]string, int64, error) {
	readers := make([]io.Reader, 0, len(meta.Parts))
	for _, part := range meta.Parts {
		f, err := os.Open(part)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	src := io.MultiReader(readers...)

	if target.single != "" && target.splitSize > 0 && meta.Size > target.splitSize {
		return nil, 0, services.Wrap(services.ErrFormat, "ops", "install",
			fmt.Sprintf("%s image of %d bytes exceeds the %d byte part size and cannot be split", meta.Format, meta.Size, target.splitSize), nil)
	}
	splitSize := target.splitSize
	if target.single != "" || splitSize <= 0 {
		splitSize = max(meta.Size, 1)
	}
	name := func(part int) string {
		if target.single != "" {
			return target.single
		}
		return disc.PartName(target.base, target.format, part)
	}

	w, err := fileutil.NewSplitWriter(name, splitSize)
	if err != nil {
		return nil, 0, err
	}
	if _, err := fileutil.Copy(ctx, w, src, meta.Size, 0, progress); err != nil {
		_ = w.Abort()
		return nil, 0, err
	}
	if err := w.Close(); err != nil {
		_ = w.Abort()
		return nil, 0, err
	}

	files := w.Parts()
	if target.format == disc.FormatISO && target.single == "" && len(files) == 1 {
		// An unsplit ISO keeps the plain name.
		plain := target.first()
		if err := os.Rename(files[0], plain); err != nil {
			_ = w.Abort()
			return nil, 0, err
		}
		files[0] = plain
	}
	return files, w.Written(), nil
}
