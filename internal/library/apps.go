package library

import (
	"encoding/xml"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tinywii/internal/fileutil"
	"tinywii/internal/services"
)

// App is a homebrew application under apps/.
type App struct {
	Slug             string
	Dir              string
	Name             string
	Coder            string
	Version          string
	ShortDescription string
	LongDescription  string
	ReleaseDate      string
	Size             int64
}

type appMeta struct {
	XMLName          xml.Name `xml:"app"`
	Name             string   `xml:"name"`
	Coder            string   `xml:"coder"`
	Author           string   `xml:"author"`
	Version          string   `xml:"version"`
	ReleaseDate      string   `xml:"release_date"`
	ShortDescription string   `xml:"short_description"`
	LongDescription  string   `xml:"long_description"`
}

// DiscoverApps lists the homebrew apps under mount/apps. A directory counts
// as an app when it holds boot.dol or boot.elf. meta.xml is optional.
func DiscoverApps(mount string) ([]App, error) {
	dir := filepath.Join(mount, AppsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrIO, "library", "discover apps", dir, err)
	}
	apps := make([]App, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !IsApp(path) {
			continue
		}
		app, err := LoadApp(path)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// IsApp reports whether dir contains a homebrew executable.
func IsApp(dir string) bool {
	for _, name := range []string{"boot.dol", "boot.elf"} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.Mode().IsRegular() {
			return true
		}
	}
	return false
}

// LoadApp reads one app directory. A malformed meta.xml falls back to the
// directory name rather than failing the listing.
func LoadApp(dir string) (App, error) {
	slug := filepath.Base(dir)
	app := App{Slug: slug, Dir: dir, Name: slug}
	size, err := fileutil.DirSize(dir)
	if err != nil {
		return App{}, services.Wrap(services.ErrIO, "library", "load app", dir, err)
	}
	app.Size = size

	data, err := os.ReadFile(filepath.Join(dir, "meta.xml"))
	if err != nil {
		return app, nil
	}
	var meta appMeta
	if err := xml.Unmarshal(data, &meta); err != nil {
		return app, nil
	}
	if name := strings.TrimSpace(meta.Name); name != "" {
		app.Name = name
	}
	app.Coder = strings.TrimSpace(meta.Coder)
	if app.Coder == "" {
		app.Coder = strings.TrimSpace(meta.Author)
	}
	app.Version = strings.TrimSpace(meta.Version)
	app.ShortDescription = strings.TrimSpace(meta.ShortDescription)
	app.LongDescription = strings.TrimSpace(meta.LongDescription)
	app.ReleaseDate = formatReleaseDate(strings.TrimSpace(meta.ReleaseDate))
	return app, nil
}

// formatReleaseDate turns the YYYYMMDDhhmmss stamp used by meta.xml into a
// date. Other layouts are returned unchanged.
func formatReleaseDate(raw string) string {
	for _, layout := range []string{"20060102150405", "200601021504", "20060102"} {
		if len(raw) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return raw
}
