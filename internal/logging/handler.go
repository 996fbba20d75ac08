// Package logging provides the buffered slog handler behind the CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// A configurable [slog.Handler] with buffered startup.
//
// Records emitted before the first [Handler.Flush] are held in memory, so
// the process can log from init paths before flags are parsed. Once the CLI
// has decided on level, stream, and formatting, Flush writes the held
// records and switches the handler to direct output.
type Handler interface {
	slog.Handler

	// Sets the minimum level a record needs to be emitted.
	SetLevel(level slog.Level)

	// Sets the output stream. Records are discarded while no stream is set.
	SetStream(w io.Writer)

	// Sets the formatter used to render records.
	SetFormatter(f *Formatter)

	// Writes all buffered records that pass the current level and switches
	// the handler to direct output.
	Flush()
}

// Creates a new buffered [Handler] with no stream and a plain formatter.
func NewHandler() Handler {
	return &handler{
		core: &core{
			level:     slog.LevelInfo,
			formatter: NewFormatter(false),
		},
	}
}

// Shared state behind every derived handler.
//
// WithGroup and WithAttrs return new handler values, but all of them point
// at the same core so reconfiguration reaches the whole tree.
type core struct {
	mu        sync.Mutex
	level     slog.Level
	out       io.Writer
	formatter *Formatter
	buffered  []entry
	flushed   bool
}

// A record captured before the first flush, together with the group and
// attr context of the handler that received it.
type entry struct {
	rec    slog.Record
	groups []string
	attrs  []slog.Attr
}

type handler struct {
	core   *core
	groups []string
	attrs  []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()
	return level >= h.core.level
}

func (h *handler) Handle(_ context.Context, rec slog.Record) error {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()

	if !h.core.flushed {
		h.core.buffered = append(h.core.buffered, entry{rec: rec.Clone(), groups: h.groups, attrs: h.attrs})
		return nil
	}

	return h.core.write(entry{rec: rec, groups: h.groups, attrs: h.attrs})
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *h
	derived.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &derived
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.groups = append(append([]string{}, h.groups...), name)
	return &derived
}

func (h *handler) SetLevel(level slog.Level) {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()
	h.core.level = level
}

func (h *handler) SetStream(w io.Writer) {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()
	h.core.out = w
}

func (h *handler) SetFormatter(f *Formatter) {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()
	h.core.formatter = f
}

func (h *handler) Flush() {
	h.core.mu.Lock()
	defer h.core.mu.Unlock()

	for _, e := range h.core.buffered {
		if e.rec.Level >= h.core.level {
			h.core.write(e)
		}
	}
	h.core.buffered = nil
	h.core.flushed = true
}

// Renders and writes a single entry. Callers must hold the core mutex.
func (c *core) write(e entry) error {
	if c.out == nil {
		return nil
	}
	_, err := c.out.Write(c.formatter.format(e.groups, e.attrs, e.rec))
	return err
}
