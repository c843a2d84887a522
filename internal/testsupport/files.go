package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// patternByte is the fill value at offset off. A position-dependent pattern
// lets checksum and join tests notice parts written out of order.
func patternByte(off int64) byte { return byte(off % 251) }

// WriteFile fills path with size bytes of the offset pattern, creating
// parent directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writePattern(t, path, max(size, 1), nil)
}

// writePattern writes size pattern bytes to path with prefix laid over the
// start of the file.
func writePattern(t testing.TB, path string, size int64, prefix []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunk = 32 * 1024
	buf := make([]byte, chunk)
	for off := int64(0); off < size; off += chunk {
		n := min(int64(chunk), size-off)
		for i := range n {
			buf[i] = patternByte(off + i)
		}
		if off < int64(len(prefix)) {
			copy(buf[:n], prefix[off:])
		}
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}
