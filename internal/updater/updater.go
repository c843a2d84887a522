package updater

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blang/semver/v4"

	"tinywii/internal/config"
	"tinywii/internal/logging"
	"tinywii/internal/redump"
	"tinywii/internal/services"
)

// ReleasesURL is where users download new builds.
const ReleasesURL = "https://github.com/mq1/TinyWiiBackupManager/releases/latest"

// Info is the result of a release check.
type Info struct {
	Current   string
	Latest    string
	Available bool
	// Development is set when the running build has no release version.
	Development bool
	URL         string
}

// Checker compares the running build against the published version file.
type Checker struct {
	fetcher   *Fetcher
	url       string
	titlesURL string
	redumpURL string
	current   string
	logger    *slog.Logger
}

// NewChecker builds a checker from the update configuration. current is the
// running build's version string.
func NewChecker(cfg config.Update, current string, logger *slog.Logger) *Checker {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return &Checker{
		fetcher:   NewFetcher(client, cfg.MaxAttempts, "tinywii/"+current),
		url:       cfg.URL,
		titlesURL: cfg.TitlesURL,
		redumpURL: cfg.RedumpURL,
		current:   current,
		logger:    logging.NewComponentLogger(logger, "updater"),
	}
}

// Check fetches the latest version and compares it with the running one.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, err
	}
	latest, err := semver.ParseTolerant(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, "updater", "check", "invalid version file", err)
	}
	info := &Info{Current: c.current, Latest: latest.String(), URL: ReleasesURL}
	current, err := semver.ParseTolerant(c.current)
	if err != nil {
		info.Development = true
		c.logger.Debug("running build has no release version", logging.String("version", c.current))
		return info, nil
	}
	info.Available = latest.GT(current)
	c.logger.Info("update check complete",
		logging.String("current", current.String()),
		logging.String("latest", info.Latest),
		logging.Bool("available", info.Available),
	)
	return info, nil
}

// DownloadTitles fetches the GameTDB titles file and writes it to dest
// atomically. It returns the number of bytes written.
func (c *Checker) DownloadTitles(ctx context.Context, dest string) (int64, error) {
	body, err := c.fetcher.Get(ctx, c.titlesURL)
	if err != nil {
		return 0, err
	}
	if len(body) == 0 {
		return 0, services.Wrap(services.ErrNetwork, "updater", "download titles", "empty response", nil)
	}
	if err := writeAtomic(dest, body); err != nil {
		return 0, services.Wrap(services.ErrIO, "updater", "download titles", dest, err)
	}
	c.logger.Info("titles database updated", logging.String("path", dest), logging.Int("bytes", len(body)))
	return int64(len(body)), nil
}

// DownloadRedump fetches every redump DAT into dir, unpacking the zip the
// site serves. It returns the written paths.
func (c *Checker) DownloadRedump(ctx context.Context, dir string) ([]string, error) {
	paths := make([]string, 0, len(redump.Systems))
	for _, sys := range redump.Systems {
		url := strings.TrimSuffix(c.redumpURL, "/") + "/" + sys.Slug + "/"
		body, err := c.fetcher.Get(ctx, url)
		if err != nil {
			return paths, err
		}
		dat, err := redump.ExtractDAT(body)
		if err != nil {
			return paths, err
		}
		entries, err := redump.Parse(bytes.NewReader(dat))
		if err != nil {
			return paths, err
		}
		dest := filepath.Join(dir, sys.FileName)
		if err := writeAtomic(dest, dat); err != nil {
			return paths, services.Wrap(services.ErrIO, "updater", "download redump", dest, err)
		}
		c.logger.Info("redump database updated",
			logging.String("system", sys.Slug),
			logging.String("path", dest),
			logging.Int("entries", len(entries)),
		)
		paths = append(paths, dest)
	}
	return paths, nil
}

func writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// String describes the check result for CLI output.
func (i *Info) String() string {
	switch {
	case i.Development:
		return fmt.Sprintf("development build %s; latest release is %s", i.Current, i.Latest)
	case i.Available:
		return fmt.Sprintf("update available: %s -> %s (%s)", i.Current, i.Latest, i.URL)
	default:
		return fmt.Sprintf("up to date (%s)", i.Current)
	}
}
