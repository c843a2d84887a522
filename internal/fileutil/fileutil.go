package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Progress receives the number of bytes copied so far out of total.
type Progress func(done, total int64)

const copyBufferSize = 1 << 20

// CopyFile streams src to dst with default permissions (0o644), stopping
// between chunks when ctx ends.
func CopyFile(ctx context.Context, src, dst string, progress Progress) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := Copy(ctx, out, in, info.Size(), 0, progress); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified streams src to dst and re-reads dst to compare XXH64 and
// size with the source. Removes dst on mismatch or failure.
func CopyFileVerified(ctx context.Context, src, dst string, progress Progress) (uint64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHash := xxhash.New()
	written, err := Copy(ctx, out, io.TeeReader(in, srcHash), info.Size(), 0, progress)
	if err == nil {
		err = out.Close()
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}

	dstSum, _, err := HashFiles(ctx, dst)
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	if dstSum != srcHash.Sum64() {
		_ = os.Remove(dst)
		return 0, errors.New("copy hash mismatch: file corrupted during copy")
	}
	return dstSum, nil
}

// HashFiles returns the XXH64 of the concatenation of paths and its size.
func HashFiles(ctx context.Context, paths ...string) (uint64, int64, error) {
	h := xxhash.New()
	var total int64
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return 0, total, err
		}
		n, err := Copy(ctx, h, f, 0, total, nil)
		f.Close()
		total += n
		if err != nil {
			return 0, total, err
		}
	}
	return h.Sum64(), total, nil
}

// Copy moves r to w in chunks, checking ctx before each read. offset is added
// to the count reported to progress so multi-file copies report one running
// total.
func Copy(ctx context.Context, w io.Writer, r io.Reader, total, offset int64, progress Progress) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
			if m != n {
				return written, io.ErrShortWrite
			}
			if progress != nil {
				progress(offset+written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// JoinFiles concatenates parts into dst, removing dst when the copy fails.
func JoinFiles(ctx context.Context, dst string, parts []string, progress Progress) (int64, error) {
	var total int64
	for _, part := range parts {
		info, err := os.Stat(part)
		if err != nil {
			return 0, fmt.Errorf("stat part: %w", err)
		}
		total += info.Size()
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	var written int64
	for _, part := range parts {
		in, err := os.Open(part)
		if err != nil {
			out.Close()
			_ = os.Remove(dst)
			return 0, err
		}
		n, err := Copy(ctx, out, in, total, written, progress)
		in.Close()
		written += n
		if err != nil {
			out.Close()
			_ = os.Remove(dst)
			return 0, err
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return written, nil
}

// CopyDir copies the regular files and directories under src into dst.
// Hidden entries are skipped.
func CopyDir(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(ctx, path, target, nil)
	})
}

// DirSize sums the sizes of regular files under root.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
