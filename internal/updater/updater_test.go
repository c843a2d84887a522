package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tinywii/internal/config"
	"tinywii/internal/logging"
	"tinywii/internal/redump"
	"tinywii/internal/services"
)

func newTestChecker(t *testing.T, current string, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Default().Update
	cfg.URL = srv.URL + "/version.txt"
	cfg.TitlesURL = srv.URL + "/titles.txt"
	cfg.RedumpURL = srv.URL + "/datfile"
	cfg.MaxAttempts = 3
	c := NewChecker(cfg, current, logging.NewNop())
	c.fetcher.initial = time.Millisecond
	return c
}

func TestCheckReportsNewerRelease(t *testing.T) {
	c := newTestChecker(t, "1.2.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("v1.3.0\n"))
	})
	info, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !info.Available || info.Latest != "1.3.0" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCheckUpToDateAndDevelopment(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1.3.0"))
	}
	info, err := newTestChecker(t, "1.3.0", handler).Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Available || info.Development {
		t.Fatalf("expected up to date, got %+v", info)
	}

	info, err = newTestChecker(t, "dev", handler).Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !info.Development || info.Available {
		t.Fatalf("expected development build, got %+v", info)
	}
}

func TestCheckRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("1.0.1"))
	})
	info, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if calls.Load() != 3 || !info.Available {
		t.Fatalf("expected 3 attempts and an update, got %d %+v", calls.Load(), info)
	}
}

func TestCheckDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})
	_, err := c.Check(context.Background())
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestCheckGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})
	if _, err := c.Check(context.Background()); !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCheckRejectsGarbage(t *testing.T) {
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a version</html>"))
	})
	if _, err := c.Check(context.Background()); !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestCheckCancelled(t *testing.T) {
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1.0.1"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Check(ctx); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestDownloadTitles(t *testing.T) {
	body := "TITLES = https://www.gametdb.com\nRMGE01 = Super Mario Galaxy\n"
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/titles.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	dest := filepath.Join(t.TempDir(), "drive", "titles.txt")
	n, err := c.DownloadTitles(context.Background(), dest)
	if err != nil {
		t.Fatalf("DownloadTitles: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body || n != int64(len(body)) {
		t.Fatalf("unexpected titles file %q (%d)", got, n)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}

const testDAT = `<datafile><game name="Melee (USA)"><rom name="Melee (USA).iso" size="1459978240" crc="0e63d4c7"/></game></datafile>`

func TestDownloadRedumpUnpacksZip(t *testing.T) {
	var zipped bytes.Buffer
	zw := zip.NewWriter(&zipped)
	w, err := zw.Create("Nintendo - Wii - Discs.dat")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(testDAT))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datfile/wii/":
			_, _ = w.Write(zipped.Bytes())
		case "/datfile/gc/":
			_, _ = w.Write([]byte(testDAT))
		default:
			http.NotFound(w, r)
		}
	})
	dir := t.TempDir()
	paths, err := c.DownloadRedump(context.Background(), dir)
	if err != nil {
		t.Fatalf("DownloadRedump: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}
	db, err := redump.Load(paths...)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := db.Lookup(0x0e63d4c7); !ok || len(db.Sources()) != 2 {
		t.Fatalf("downloaded DATs not loadable: %d entries from %v", db.Len(), db.Sources())
	}
}

func TestDownloadRedumpRejectsInvalidDAT(t *testing.T) {
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance"))
	})
	dir := t.TempDir()
	if _, err := c.DownloadRedump(context.Background(), dir); !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "redump-wii.dat")); !os.IsNotExist(err) {
		t.Fatal("invalid DAT was written")
	}
}
