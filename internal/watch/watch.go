package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tinywii/internal/library"
	"tinywii/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reports layout changes on a drive: games and apps added, removed,
// or renamed. Bursts of events collapse into one callback after the debounce
// delay.
type Watcher struct {
	mount    string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// New watches mount and its wbfs/, games/ and apps/ directories. Roots that
// do not exist yet are added when they appear.
func New(mount string, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		mount:    filepath.Clean(mount),
		debounce: debounce,
		onChange: onChange,
		logger:   logging.NewComponentLogger(logger, "watch"),
		fsw:      fsw,
	}
	if err := fsw.Add(mount); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	for _, root := range roots() {
		w.addRoot(filepath.Join(mount, root))
	}
	return w, nil
}

func roots() []string {
	return []string{library.WBFSDir, library.GamesDir, library.AppsDir}
}

func (w *Watcher) addRoot(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("watch root failed", logging.String("path", path), logging.Error(err))
	}
}

// Run forwards events until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.schedule()
				continue
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// Close stops watching and cancels a pending callback.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.relevant(event) {
		return
	}
	if event.Op.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.mount {
		w.addRoot(event.Name)
	}
	w.logger.Debug("layout change", logging.String("path", event.Name), logging.String("op", event.Op.String()))
	w.schedule()
}

// relevant keeps structural events on visible entries. Writes into disc
// images in progress are ignored; the install itself triggers a rescan.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Dir(event.Name) == w.mount {
		base := filepath.Base(event.Name)
		for _, root := range roots() {
			if base == root {
				return true
			}
		}
		return base == library.TitlesFileName
	}
	return true
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
