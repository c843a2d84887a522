package ops

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"tinywii/internal/disc"
	"tinywii/internal/fileutil"
)

// Digest holds the whole-image checksums of a disc across all its parts.
type Digest struct {
	CRC32 uint32
	XXH64 uint64
	Size  int64
}

// CRC32Hex formats the CRC32 the way redump lists it.
func (d Digest) CRC32Hex() string {
	return fmt.Sprintf("%08x", d.CRC32)
}

// XXH64Hex formats the XXH64 digest.
func (d Digest) XXH64Hex() string {
	return fmt.Sprintf("%016x", d.XXH64)
}

// Checksum hashes the disc image at path and its split parts in order.
func Checksum(ctx context.Context, path string, progress fileutil.Progress) (Digest, error) {
	parts := disc.Parts(path)
	var total int64
	for _, part := range parts {
		info, err := os.Stat(part)
		if err != nil {
			return Digest{}, wrap("checksum", part, err)
		}
		total += info.Size()
	}

	crc := crc32.NewIEEE()
	xx := xxhash.New()
	sink := io.MultiWriter(crc, xx)
	var done int64
	for _, part := range parts {
		f, err := os.Open(part)
		if err != nil {
			return Digest{}, wrap("checksum", part, err)
		}
		n, err := fileutil.Copy(ctx, sink, f, total, done, progress)
		f.Close()
		done += n
		if err != nil {
			return Digest{}, wrap("checksum", part, err)
		}
	}
	return Digest{CRC32: crc.Sum32(), XXH64: xx.Sum64(), Size: done}, nil
}
