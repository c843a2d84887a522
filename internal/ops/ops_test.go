package ops_test

import (
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"

	"tinywii/internal/disc"
	"tinywii/internal/library"
	"tinywii/internal/logging"
	"tinywii/internal/ops"
	"tinywii/internal/services"
	"tinywii/internal/testsupport"
)

func TestChecksumCoversAllParts(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "RMGE01.wbfs")
	testsupport.WriteDisc(t, first, testsupport.ContainerWBFS, "RMGE01", "Galaxy", 3000)
	testsupport.WriteFile(t, filepath.Join(dir, "RMGE01.wbf1"), 1000)

	var joined bytes.Buffer
	for _, part := range []string{first, filepath.Join(dir, "RMGE01.wbf1")} {
		data, err := os.ReadFile(part)
		if err != nil {
			t.Fatal(err)
		}
		joined.Write(data)
	}

	var last int64
	digest, err := ops.Checksum(context.Background(), first, func(done, total int64) {
		last = done
		if total != 4000 {
			t.Errorf("unexpected total %d", total)
		}
	})
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if digest.Size != 4000 || last != 4000 {
		t.Fatalf("unexpected size %d (progress %d)", digest.Size, last)
	}
	if digest.CRC32 != crc32.ChecksumIEEE(joined.Bytes()) {
		t.Fatalf("crc32 mismatch: %s", digest.CRC32Hex())
	}
	if digest.XXH64 != xxhash.Sum64(joined.Bytes()) {
		t.Fatalf("xxh64 mismatch: %s", digest.XXH64Hex())
	}
	if len(digest.CRC32Hex()) != 8 || len(digest.XXH64Hex()) != 16 {
		t.Fatalf("unexpected hex widths %q %q", digest.CRC32Hex(), digest.XXH64Hex())
	}
}

func TestChecksumCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.iso")
	testsupport.WriteDisc(t, path, testsupport.ContainerISO, "RMGE01", "Galaxy", 1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ops.Checksum(ctx, path, nil); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestInstallSplitsWiiISO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "incoming", "galaxy.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "RMGE01", "Super Mario Galaxy", 2500)

	res, err := ops.Install(context.Background(), src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1000})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	wantDir := filepath.Join(cfg.Paths.MountPoint, "wbfs", "Super Mario Galaxy [RMGE01]")
	if res.Dir != wantDir {
		t.Fatalf("dir = %q, want %q", res.Dir, wantDir)
	}
	want := []string{"RMGE01.part0.iso", "RMGE01.part1.iso", "RMGE01.part2.iso"}
	if len(res.Files) != len(want) {
		t.Fatalf("unexpected files %v", res.Files)
	}
	for i, name := range want {
		if filepath.Base(res.Files[i]) != name {
			t.Fatalf("file %d = %s, want %s", i, res.Files[i], name)
		}
	}
	if res.Bytes != 2500 {
		t.Fatalf("expected 2500 bytes, got %d", res.Bytes)
	}
	for i, size := range []int64{1000, 1000, 500} {
		info, err := os.Stat(res.Files[i])
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() != size {
			t.Fatalf("part %d has %d bytes, want %d", i, info.Size(), size)
		}
	}

	found, err := disc.FindDiscFile(wantDir)
	if err != nil {
		t.Fatal(err)
	}
	h, meta, err := disc.Read(found)
	if err != nil {
		t.Fatal(err)
	}
	if h.ID != "RMGE01" || meta.Size != 2500 || len(meta.Parts) != 3 {
		t.Fatalf("installed image reads back wrong: %+v %+v", h, meta)
	}

	if _, err := ops.Install(context.Background(), src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1000}); !errors.Is(err, ops.ErrAlreadyInstalled) {
		t.Fatalf("expected ErrAlreadyInstalled, got %v", err)
	}
}

func TestInstallUnsplitKeepsPlainName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "in.wbfs")
	testsupport.WriteDisc(t, src, testsupport.ContainerWBFS, "SOUE01", "Skyward Sword", 2000)

	res, err := ops.Install(context.Background(), src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1 << 20, RemoveSource: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || filepath.Base(res.Files[0]) != "SOUE01.wbfs" {
		t.Fatalf("unexpected files %v", res.Files)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, got %v", err)
	}
}

func TestInstallGameCube(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "melee.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "GALE01", "Super Smash Bros Melee", 1500)

	res, err := ops.Install(context.Background(), src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cfg.Paths.MountPoint, "games", "Super Smash Bros Melee [GALE01]", "game.iso")
	if len(res.Files) != 1 || res.Files[0] != want {
		t.Fatalf("unexpected files %v, want %s", res.Files, want)
	}
}

func TestInstallCancelledCleansUp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "galaxy.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "RMGE01", "Galaxy", 4096)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ops.Install(ctx, src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1024})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.MountPoint, "wbfs", "Galaxy [RMGE01]")); !os.IsNotExist(err) {
		t.Fatalf("expected game dir removed, got %v", err)
	}
}

func TestArchiveJoinsAndVerifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "galaxy.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "RMGE01", "Galaxy", 2500)
	installed, err := ops.Install(context.Background(), src, cfg.Paths.MountPoint, ops.InstallOptions{SplitSize: 1000})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(cfg.Paths.ArchiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := ops.Archive(context.Background(), installed.Dir, cfg.Paths.ArchiveDir, ops.ArchiveOptions{Verify: true})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if filepath.Base(res.Path) != "Galaxy [RMGE01].iso" || res.Bytes != 2500 {
		t.Fatalf("unexpected result %+v", res)
	}
	want, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("archive does not match original image")
	}
	if res.XXH64 != xxhash.Sum64(want) {
		t.Fatalf("unexpected archive hash %x", res.XXH64)
	}

	if _, err := ops.Archive(context.Background(), installed.Dir, cfg.Paths.ArchiveDir, ops.ArchiveOptions{}); !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO for existing archive, got %v", err)
	}
}

func TestCopyApp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "wiiflow")
	testsupport.WriteFile(t, filepath.Join(src, "boot.dol"), 64)
	testsupport.WriteFile(t, filepath.Join(src, "meta.xml"), 16)

	dest, err := ops.CopyApp(context.Background(), src, cfg.Paths.MountPoint)
	if err != nil {
		t.Fatalf("CopyApp: %v", err)
	}
	if dest != filepath.Join(cfg.Paths.MountPoint, "apps", "wiiflow") {
		t.Fatalf("unexpected dest %s", dest)
	}
	if _, err := os.Stat(filepath.Join(dest, "boot.dol")); err != nil {
		t.Fatalf("expected boot.dol copied: %v", err)
	}
	if _, err := ops.CopyApp(context.Background(), src, cfg.Paths.MountPoint); err != nil {
		t.Fatalf("replacing an app should succeed: %v", err)
	}

	if _, err := ops.CopyApp(context.Background(), t.TempDir(), cfg.Paths.MountPoint); !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat for non-app dir, got %v", err)
	}
}

func TestCleanPartialsRemovesOldLeftovers(t *testing.T) {
	mount := t.TempDir()
	apps := filepath.Join(mount, library.AppsDir)
	stale := filepath.Join(apps, ".browser.partial")
	fresh := filepath.Join(apps, ".wiiflow.partial")
	kept := filepath.Join(apps, "browser")
	for _, dir := range []string{stale, fresh, kept} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	download := filepath.Join(mount, "titles.txt.tmp")
	if err := os.WriteFile(download, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	for _, path := range []string{stale, kept, download} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	res := ops.CleanPartials(context.Background(), mount, time.Hour, logging.NewNop())
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", res.Errors)
	}
	if len(res.Removed) != 2 {
		t.Fatalf("expected stale partial and download removed, got %v", res.Removed)
	}
	for _, path := range []string{stale, download} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s should be gone", path)
		}
	}
	for _, path := range []string{fresh, kept} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should remain: %v", path, err)
		}
	}
}
