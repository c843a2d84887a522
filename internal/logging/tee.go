package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopHandler{}
	case 1:
		return filtered[0]
	default:
		return &teeHandler{handlers: filtered}
	}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}

// TeeLogger duplicates log output from base into the provided handlers.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newTeeHandler(handlers...))
	}
	return slog.New(newTeeHandler(append([]slog.Handler{base.Handler()}, handlers...)...))
}

// Entry is one record captured by a Recent buffer.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Error   string
}

// Recent is a bounded in-memory log buffer. The TUI tees warnings into it so
// the last few problems stay visible without a terminal log stream.
type Recent struct {
	mu      sync.Mutex
	min     slog.Level
	limit   int
	entries []Entry
}

// NewRecent keeps the last limit records at or above min.
func NewRecent(limit int, min slog.Level) *Recent {
	if limit <= 0 {
		limit = 1
	}
	return &Recent{min: min, limit: limit}
}

// Entries returns a copy of the buffered records, oldest first.
func (r *Recent) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Handler returns a slog handler that feeds the buffer.
func (r *Recent) Handler() slog.Handler {
	return &recentHandler{buf: r}
}

func (r *Recent) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.limit; over > 0 {
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
}

type recentHandler struct {
	buf   *Recent
	attrs []slog.Attr
}

func (h *recentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.buf.min
}

func (h *recentHandler) Handle(_ context.Context, record slog.Record) error {
	entry := Entry{Time: record.Time, Level: record.Level, Message: strings.TrimSpace(record.Message)}
	find := func(attr slog.Attr) bool {
		if attr.Key == "error" {
			entry.Error = attrString(attr.Value)
			return false
		}
		return true
	}
	for _, attr := range h.attrs {
		if !find(attr) {
			break
		}
	}
	record.Attrs(find)
	h.buf.add(entry)
	return nil
}

func (h *recentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recentHandler{buf: h.buf, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *recentHandler) WithGroup(string) slog.Handler { return h }
