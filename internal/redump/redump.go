// Package redump matches disc checksums against redump.org DAT files.
//
// A DAT is the Logiqx XML dump redump publishes per system. Only the CRC32
// and size of each ROM are used for matching; MD5 and SHA-1 are kept for
// display.
package redump

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tinywii/internal/services"
)

// System is one redump system and the file its DAT is stored in.
type System struct {
	Slug     string
	FileName string
}

// Systems lists the DATs tinywii knows about. Slug is the path segment under
// the redump datfile URL.
var Systems = []System{
	{Slug: "wii", FileName: "redump-wii.dat"},
	{Slug: "gc", FileName: "redump-gc.dat"},
}

// Entry is one dumped ROM.
type Entry struct {
	Game  string
	ROM   string
	Size  int64
	CRC32 uint32
	MD5   string
	SHA1  string
}

type datFile struct {
	XMLName xml.Name  `xml:"datafile"`
	Games   []datGame `xml:"game"`
}

type datGame struct {
	Name string   `xml:"name,attr"`
	ROMs []datROM `xml:"rom"`
}

type datROM struct {
	Name string `xml:"name,attr"`
	Size string `xml:"size,attr"`
	CRC  string `xml:"crc,attr"`
	MD5  string `xml:"md5,attr"`
	SHA1 string `xml:"sha1,attr"`
}

// Parse reads a Logiqx DAT. ROMs without a valid CRC are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var dat datFile
	if err := xml.NewDecoder(r).Decode(&dat); err != nil {
		return nil, services.Wrap(services.ErrFormat, "redump", "parse", "invalid DAT", err)
	}
	entries := make([]Entry, 0, len(dat.Games))
	for _, g := range dat.Games {
		for _, rom := range g.ROMs {
			crc, err := strconv.ParseUint(strings.TrimSpace(rom.CRC), 16, 32)
			if err != nil {
				continue
			}
			size, _ := strconv.ParseInt(strings.TrimSpace(rom.Size), 10, 64)
			entries = append(entries, Entry{
				Game:  g.Name,
				ROM:   rom.Name,
				Size:  size,
				CRC32: uint32(crc),
				MD5:   strings.ToLower(rom.MD5),
				SHA1:  strings.ToLower(rom.SHA1),
			})
		}
	}
	return entries, nil
}

// ExtractDAT returns the DAT inside a redump zip download. Data that is not
// a zip archive is returned unchanged.
func ExtractDAT(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return data, nil
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "redump", "extract", "open archive", err)
	}
	for _, file := range zr.File {
		if !strings.EqualFold(filepath.Ext(file.Name), ".dat") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, services.Wrap(services.ErrFormat, "redump", "extract", file.Name, err)
		}
		out, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, services.Wrap(services.ErrFormat, "redump", "extract", file.Name, err)
		}
		return out, nil
	}
	return nil, services.Wrap(services.ErrFormat, "redump", "extract", "archive has no .dat file", nil)
}

// Paths returns every DAT location under dirs, in lookup order.
func Paths(dirs ...string) []string {
	var out []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, sys := range Systems {
			out = append(out, filepath.Join(dir, sys.FileName))
		}
	}
	return out
}

// DB indexes DAT entries by CRC32. A nil DB matches nothing.
type DB struct {
	byCRC   map[uint32]Entry
	sources []string
}

// Load reads every DAT in paths that exists. Missing files are skipped, so
// an empty DB is returned when none are present. The first entry for a CRC
// wins.
func Load(paths ...string) (*DB, error) {
	db := &DB{byCRC: map[uint32]Entry{}}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, services.Wrap(services.ErrIO, "redump", "load", path, err)
		}
		data, err = ExtractDAT(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries, err := Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, e := range entries {
			if _, dup := db.byCRC[e.CRC32]; !dup {
				db.byCRC[e.CRC32] = e
			}
		}
		db.sources = append(db.sources, path)
	}
	return db, nil
}

// Len reports the number of indexed ROMs.
func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.byCRC)
}

// Sources lists the files the DB was loaded from.
func (db *DB) Sources() []string {
	if db == nil {
		return nil
	}
	return db.sources
}

// Lookup finds the entry with the given CRC32.
func (db *DB) Lookup(crc uint32) (Entry, bool) {
	if db == nil {
		return Entry{}, false
	}
	e, ok := db.byCRC[crc]
	return e, ok
}

// Check compares a whole-image CRC32 and size with the DB. The result is
// StatusUnknown when the DB is empty.
func (db *DB) Check(crc uint32, size int64) Result {
	if db.Len() == 0 {
		return Result{}
	}
	e, ok := db.Lookup(crc)
	if !ok || (e.Size > 0 && size > 0 && e.Size != size) {
		return Result{Status: StatusMismatch}
	}
	return Result{Status: StatusMatch, Entry: e}
}

// Status is the outcome of a redump comparison.
type Status int

const (
	// StatusUnknown means no comparison was possible.
	StatusUnknown Status = iota
	StatusMatch
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "match"
	case StatusMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Result is a Status plus the entry that matched, if any.
type Result struct {
	Status Status
	Entry  Entry
}

// Label is a short description for tables and logs.
func (r Result) Label() string {
	if r.Status == StatusMatch {
		return r.Entry.Game
	}
	return r.Status.String()
}
