package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tinywii/internal/logging"
	"tinywii/internal/watch"
)

func startWatcher(t *testing.T, mount string, calls *atomic.Int32) {
	t.Helper()
	w, err := watch.New(mount, 50*time.Millisecond, func() { calls.Add(1) }, logging.NewNop())
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
}

func waitCalls(t *testing.T, calls *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for calls.Load() < want {
		select {
		case <-deadline:
			t.Fatalf("expected %d callbacks, got %d", want, calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	mount := t.TempDir()
	if err := os.Mkdir(filepath.Join(mount, "wbfs"), 0o755); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	startWatcher(t, mount, &calls)

	for _, name := range []string{"A [RMGE01]", "B [RMCE01]", "C [SOUE01]"} {
		if err := os.Mkdir(filepath.Join(mount, "wbfs", name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	waitCalls(t, &calls, 1)
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one coalesced callback, got %d", got)
	}
}

func TestWatcherPicksUpNewRoots(t *testing.T) {
	mount := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, mount, &calls)

	if err := os.Mkdir(filepath.Join(mount, "games"), 0o755); err != nil {
		t.Fatal(err)
	}
	waitCalls(t, &calls, 1)

	// Give the watcher time to add the new root.
	time.Sleep(100 * time.Millisecond)
	if err := os.Mkdir(filepath.Join(mount, "games", "Melee [GALE01]"), 0o755); err != nil {
		t.Fatal(err)
	}
	waitCalls(t, &calls, 2)
}

func TestWatcherIgnoresHiddenAndUnrelated(t *testing.T) {
	mount := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, mount, &calls)

	if err := os.WriteFile(filepath.Join(mount, ".tinywii.lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mount, "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no callbacks, got %d", got)
	}
}
