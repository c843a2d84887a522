package library

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tinywii/internal/disc"
	"tinywii/internal/fileutil"
	"tinywii/internal/services"
)

// Game is the lightweight record produced by a directory scan. The disc
// header is not read here.
type Game struct {
	Title   string
	ID      disc.GameID
	Console disc.Console
	Dir     string
	Size    int64
}

// Display returns the title followed by the ID.
func (g Game) Display() string {
	return g.Title + " [" + string(g.ID) + "]"
}

// Discover lists the game directories under the wbfs/ and games/ roots of
// mount. Missing roots are skipped. Console is inferred from the root and
// refined by the ID.
func Discover(mount string) ([]Game, error) {
	if _, err := os.Stat(mount); err != nil {
		return nil, services.Wrap(services.ErrIO, "library", "discover", mount, err)
	}
	var games []Game
	for _, root := range []string{WBFSDir, GamesDir} {
		found, err := discoverRoot(mount, root)
		if err != nil {
			return nil, err
		}
		games = append(games, found...)
	}
	return games, nil
}

func discoverRoot(mount, root string) ([]Game, error) {
	dir := filepath.Join(mount, root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrIO, "library", "discover", dir, err)
	}
	games := make([]Game, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		title, id, ok := ParseDirName(entry.Name())
		if !ok {
			continue
		}
		console := id.Console()
		if console == disc.ConsoleUnknown {
			console = disc.ConsoleWii
			if root == GamesDir {
				console = disc.ConsoleGameCube
			}
		}
		path := filepath.Join(dir, entry.Name())
		size, err := fileutil.DirSize(path)
		if err != nil {
			return nil, services.Wrap(services.ErrIO, "library", "discover", path, err)
		}
		games = append(games, Game{
			Title:   title,
			ID:      id,
			Console: console,
			Dir:     path,
			Size:    size,
		})
	}
	return games, nil
}
