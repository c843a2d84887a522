package library

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tinywii/internal/disc"
	"tinywii/internal/services"
)

// TitlesFileName is the GameTDB titles database kept at the drive root.
const TitlesFileName = "titles.txt"

// Titles maps game IDs to their GameTDB names.
type Titles map[disc.GameID]string

// ParseTitles reads "ID = Title" lines. Blank and malformed lines are skipped.
func ParseTitles(r io.Reader) (Titles, error) {
	titles := make(Titles)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		id, err := disc.ParseGameID(strings.TrimSpace(key))
		if err != nil {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			titles[id] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrFormat, "library", "parse titles", "", err)
	}
	return titles, nil
}

// LoadTitles reads mount/titles.txt. A missing file yields an empty map.
func LoadTitles(mount string) (Titles, error) {
	path := filepath.Join(mount, TitlesFileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Titles{}, nil
		}
		return nil, services.Wrap(services.ErrIO, "library", "load titles", path, err)
	}
	defer f.Close()
	return ParseTitles(f)
}

// Lookup returns the database title for id, falling back to the 4 character
// prefix used by some homebrew and channel IDs.
func (t Titles) Lookup(id disc.GameID) (string, bool) {
	if title, ok := t[id]; ok {
		return title, true
	}
	if len(id) == 6 {
		title, ok := t[id[:4]]
		return title, ok
	}
	return "", false
}

// Apply replaces scanned titles with database titles where known.
func (t Titles) Apply(games []Game) {
	for i := range games {
		if title, ok := t.Lookup(games[i].ID); ok {
			games[i].Title = title
		}
	}
}
