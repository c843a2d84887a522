package redump

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const sampleDAT = `<?xml version="1.0"?>
<!DOCTYPE datafile PUBLIC "-//Logiqx//DTD ROM Management Datafile//EN" "http://www.logiqx.com/Dats/datafile.dtd">
<datafile>
	<header><name>Nintendo - Wii - Discs</name></header>
	<game name="Super Mario Galaxy (USA) (En,Fr,Es)">
		<category>Games</category>
		<rom name="Super Mario Galaxy (USA) (En,Fr,Es).iso" size="4699979776" crc="0a1b2c3d" md5="ABCDEF" sha1="0123456789"/>
	</game>
	<game name="Broken Entry">
		<rom name="broken.iso" size="10" crc="zz"/>
	</game>
	<game name="Wii Sports (Europe)">
		<rom name="Wii Sports (Europe).iso" size="4699979776" crc="deadbeef"/>
	</game>
</datafile>`

func writeDAT(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseSkipsInvalidCRC(t *testing.T) {
	entries, err := Parse(bytes.NewReader([]byte(sampleDAT)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	e := entries[0]
	if e.CRC32 != 0x0a1b2c3d || e.Size != 4699979776 || e.MD5 != "abcdef" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"<datafile><game", "<html><body>maintenance</body></html>"} {
		if _, err := Parse(bytes.NewReader([]byte(in))); err == nil {
			t.Fatalf("expected parse error for %q", in)
		}
	}
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeDAT(t, filepath.Join(dir, "redump-wii.dat"), []byte(sampleDAT))

	db, err := Load(Paths(dir, filepath.Join(dir, "absent"))...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if db.Len() != 2 || len(db.Sources()) != 1 {
		t.Fatalf("unexpected db: len=%d sources=%v", db.Len(), db.Sources())
	}
}

func TestLoadReadsZippedDAT(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("Nintendo - GameCube - Discs (2024).dat")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(sampleDAT)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "redump-gc.dat")
	writeDAT(t, path, buf.Bytes())

	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := db.Lookup(0xdeadbeef); !ok {
		t.Fatal("expected entry from zipped DAT")
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redump-wii.dat")
	writeDAT(t, path, []byte(sampleDAT))
	db, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	match := db.Check(0x0a1b2c3d, 4699979776)
	if match.Status != StatusMatch || match.Label() != "Super Mario Galaxy (USA) (En,Fr,Es)" {
		t.Fatalf("unexpected match result %+v", match)
	}
	if got := db.Check(0x11111111, 4699979776); got.Status != StatusMismatch {
		t.Fatalf("unknown crc: got %v", got.Status)
	}
	if got := db.Check(0x0a1b2c3d, 1024); got.Status != StatusMismatch {
		t.Fatalf("size differs: got %v", got.Status)
	}

	var empty *DB
	if got := empty.Check(0x0a1b2c3d, 0); got.Status != StatusUnknown || got.Label() != "unknown" {
		t.Fatalf("nil db: got %+v", got)
	}
}
