package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tinywii/internal/config"
	"tinywii/internal/logging"
	"tinywii/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerFormatsComponentAndScope(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTaskID(context.Background(), 12)
	ctx = services.WithStage(ctx, "process")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline"))
	log.Info("task completed", logging.String("label", "load RMGE01"))

	content := readLog(t, logPath)
	for _, fragment := range []string{"INFO", "pipeline: task completed", "[task=12 stage=process]", `label="load RMGE01"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")
	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = services.Wrap(services.ErrIO, "library", "scan", "", errors.New("no such dir"))
	logger.Warn("drive missing", logging.Args(logging.ErrorAttrs(err)...)...)

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lower case level, got %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	if record[logging.FieldErrorKind] != "io" {
		t.Fatalf("expected io error kind, got %v", record[logging.FieldErrorKind])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, false)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	if content := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); !strings.Contains(content, "hello") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestRecentKeepsLatestWarnings(t *testing.T) {
	recent := logging.NewRecent(2, slog.LevelWarn)
	logger := logging.TeeLogger(logging.NewNop(), recent.Handler())

	logger.Info("ignored")
	logger.Warn("first")
	logger.Warn("second", logging.Error(errors.New("boom")))
	logger.Error("third")

	entries := recent.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "second" || entries[0].Error != "boom" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Message != "third" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := logging.NewProgressSampler(25)
	var logged []int64
	for done := int64(0); done <= 100; done += 5 {
		if s.ShouldLog(done, 100) {
			logged = append(logged, done)
		}
	}
	want := []int64{0, 25, 50, 75, 100}
	if len(logged) != len(want) {
		t.Fatalf("logged %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged %v, want %v", logged, want)
		}
	}
	s.Reset()
	if !s.ShouldLog(0, 100) {
		t.Fatal("expected log after reset")
	}
	var nilSampler *logging.ProgressSampler
	if !nilSampler.ShouldLog(1, 2) {
		t.Fatal("nil sampler should always log")
	}
}
