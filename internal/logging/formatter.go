package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ANSI sequences for level tokens.
const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// Renders records as single lines for terminal output.
//
// The layout is "HH:MM:SS LVL group: message key=value ...". Attributes are
// only rendered in verbose mode; the message alone is the default surface.
type Formatter struct {
	color   bool
	verbose atomic.Bool
}

// Creates a new [Formatter]. Level tokens are colorized when color is true.
func NewFormatter(color bool) *Formatter {
	return &Formatter{color: color}
}

// Enables or disables rendering of record attributes.
func (f *Formatter) SetVerbose(enabled bool) {
	f.verbose.Store(enabled)
}

// Renders one record, including the trailing newline.
func (f *Formatter) format(groups []string, attrs []slog.Attr, rec slog.Record) []byte {
	var b bytes.Buffer

	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Format("15:04:05"))
		b.WriteByte(' ')
	}

	b.WriteString(f.level(rec.Level))
	b.WriteByte(' ')

	if len(groups) > 0 {
		b.WriteString(strings.Join(groups, "."))
		b.WriteString(": ")
	}

	b.WriteString(rec.Message)

	if f.verbose.Load() {
		for _, a := range attrs {
			writeAttr(&b, a)
		}
		rec.Attrs(func(a slog.Attr) bool {
			writeAttr(&b, a)
			return true
		})
	}

	b.WriteByte('\n')
	return b.Bytes()
}

// Returns the three-letter level token, colorized if enabled.
func (f *Formatter) level(level slog.Level) string {
	var token, color string
	switch {
	case level >= slog.LevelError:
		token, color = "ERR", ansiRed
	case level >= slog.LevelWarn:
		token, color = "WRN", ansiYellow
	case level >= slog.LevelInfo:
		token, color = "INF", ansiCyan
	default:
		token, color = "DBG", ansiDim
	}
	if !f.color {
		return token
	}
	return color + token + ansiReset
}

func writeAttr(b *bytes.Buffer, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}
