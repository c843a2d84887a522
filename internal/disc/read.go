package disc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tinywii/internal/services"
)

// Format names a disc image container.
type Format string

const (
	FormatISO  Format = "iso"
	FormatWBFS Format = "wbfs"
	FormatCISO Format = "ciso"
)

// Meta describes the container holding a disc, summed across split parts.
type Meta struct {
	Format Format
	Size   int64
	Parts  []string
}

const (
	cisoDataOffset = 0x8000
	minWBFSShift   = 9
	maxWBFSShift   = 16
)

// Read opens the image at path, which may be the first of several split
// parts, and returns its header.
func Read(path string) (Header, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, Meta{}, services.Wrap(services.ErrIO, "disc", "open", path, err)
	}
	defer f.Close()

	format, offset, err := detect(f)
	if err != nil {
		return Header{}, Meta{}, err
	}
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, Meta{}, services.Wrap(services.ErrFormat, "disc", "read header", fmt.Sprintf("%s: truncated image", path), err)
		}
		return Header{}, Meta{}, services.Wrap(services.ErrIO, "disc", "read header", path, err)
	}
	header, err := Parse(buf)
	if err != nil {
		return Header{}, Meta{}, fmt.Errorf("%s: %w", path, err)
	}

	parts := Parts(path)
	meta := Meta{Format: format, Parts: parts}
	for _, part := range parts {
		info, err := os.Stat(part)
		if err != nil {
			return Header{}, Meta{}, services.Wrap(services.ErrIO, "disc", "stat part", part, err)
		}
		meta.Size += info.Size()
	}
	return header, meta, nil
}

// detect sniffs the container magic and returns where the boot block lives.
func detect(r io.ReaderAt) (Format, int64, error) {
	magic := make([]byte, 12)
	n, err := r.ReadAt(magic, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, services.Wrap(services.ErrIO, "disc", "read magic", "", err)
	}
	if n < 4 {
		return "", 0, services.Wrap(services.ErrFormat, "disc", "read magic", "file too short", nil)
	}
	switch string(magic[:4]) {
	case "WBFS":
		if n < 9 {
			return "", 0, services.Wrap(services.ErrFormat, "disc", "read magic", "truncated WBFS header", nil)
		}
		shift := magic[8]
		if shift < minWBFSShift || shift > maxWBFSShift {
			return "", 0, services.Wrap(services.ErrFormat, "disc", "read magic", fmt.Sprintf("invalid WBFS sector shift %d", shift), nil)
		}
		return FormatWBFS, int64(1) << shift, nil
	case "CISO":
		return FormatCISO, cisoDataOffset, nil
	default:
		return FormatISO, 0, nil
	}
}

// PartName returns the path of split part index for a disc stored under base
// (a path without extension). WBFS splits continue as .wbf1, .wbf2; ISO
// splits are numbered .part0.iso, .part1.iso.
func PartName(base string, format Format, index int) string {
	switch format {
	case FormatWBFS:
		if index == 0 {
			return base + ".wbfs"
		}
		return base + ".wbf" + strconv.Itoa(index)
	default:
		return base + ".part" + strconv.Itoa(index) + ".iso"
	}
}

// Parts lists path followed by the split parts that exist next to it.
func Parts(path string) []string {
	lower := strings.ToLower(path)
	var format Format
	var base string
	switch {
	case strings.HasSuffix(lower, ".wbfs"):
		format, base = FormatWBFS, path[:len(path)-len(".wbfs")]
	case strings.HasSuffix(lower, ".part0.iso"):
		format, base = FormatISO, path[:len(path)-len(".part0.iso")]
	default:
		return []string{path}
	}
	parts := []string{path}
	for i := 1; ; i++ {
		next := PartName(base, format, i)
		if _, err := os.Stat(next); err != nil {
			return parts
		}
		parts = append(parts, next)
	}
}

// SupportedExtension reports whether ext (with dot, any case) is a disc image
// extension the reader understands.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".iso", ".wbfs", ".ciso", ".gcm":
		return true
	default:
		return false
	}
}

// FindDiscFile returns the first disc image in dir. Hidden files and trailing
// split parts are skipped.
func FindDiscFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrIO, "disc", "find disc file", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !SupportedExtension(filepath.Ext(name)) || isTrailingPart(name) {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", services.Wrap(services.ErrFormat, "disc", "find disc file", fmt.Sprintf("no disc image in %s", dir), nil)
}

func isTrailingPart(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".iso") {
		return false
	}
	stem := strings.TrimSuffix(lower, ".iso")
	i := strings.LastIndex(stem, ".part")
	if i < 0 {
		return false
	}
	n, err := strconv.Atoi(stem[i+len(".part"):])
	return err == nil && n > 0
}
