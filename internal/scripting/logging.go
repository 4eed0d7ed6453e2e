package scripting

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured record.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// logRing is the storage shared by a LogBuffer and the handlers derived
// from it with WithAttrs/WithGroup.
type logRing struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// LogBuffer is a slog.Handler that keeps the most recent records in a ring
// and optionally tees every record to a second handler (usually a JSON file
// handler).
type LogBuffer struct {
	ring   *logRing
	level  slog.Leveler
	tee    slog.Handler
	attrs  []slog.Attr
	prefix string
}

// NewLogBuffer creates a buffer holding up to size entries (1000 when size
// is not positive). tee may be nil.
func NewLogBuffer(size int, level slog.Leveler, tee slog.Handler) *LogBuffer {
	if size <= 0 {
		size = 1000
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogBuffer{
		ring:  &logRing{entries: make([]LogEntry, size)},
		level: level,
		tee:   tee,
	}
}

// Enabled implements slog.Handler.
func (h *LogBuffer) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.tee != nil && h.tee.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *LogBuffer) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= h.level.Level() {
		entry := LogEntry{
			Time:    record.Time,
			Level:   record.Level,
			Message: record.Message,
		}
		add := func(a slog.Attr) bool {
			if a.Equal(slog.Attr{}) {
				return true
			}
			if entry.Attrs == nil {
				entry.Attrs = make(map[string]string)
			}
			entry.Attrs[h.prefix+a.Key] = a.Value.String()
			return true
		}
		for _, a := range h.attrs {
			add(a)
		}
		record.Attrs(add)
		h.ring.push(entry)
	}
	if h.tee != nil && h.tee.Enabled(ctx, record.Level) {
		return h.tee.Handle(ctx, record)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogBuffer) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	if h.tee != nil {
		c.tee = h.tee.WithAttrs(attrs)
	}
	return &c
}

// WithGroup implements slog.Handler.
func (h *LogBuffer) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.tee != nil {
		c.tee = h.tee.WithGroup(name)
	}
	return &c
}

func (r *logRing) push(e LogEntry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// snapshot returns entries oldest first. Callers hold mu.
func (r *logRing) snapshot() []LogEntry {
	if !r.full {
		return slices.Clone(r.entries[:r.next])
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Entries returns every buffered entry, oldest first.
func (h *LogBuffer) Entries() []LogEntry {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()
	return h.ring.snapshot()
}

// Recent returns the newest n entries, oldest first.
func (h *LogBuffer) Recent(n int) []LogEntry {
	all := h.Entries()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Search returns the entries whose message or attributes contain query,
// ignoring case.
func (h *LogBuffer) Search(query string) []LogEntry {
	query = strings.ToLower(query)
	var matches []LogEntry
	for _, e := range h.Entries() {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops every buffered entry.
func (h *LogBuffer) Clear() {
	h.ring.mu.Lock()
	defer h.ring.mu.Unlock()
	clear(h.ring.entries)
	h.ring.next = 0
	h.ring.full = false
}
