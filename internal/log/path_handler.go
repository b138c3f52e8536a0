package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// HomeMarker replaces the user's home directory in logged paths.
const HomeMarker = "~"

// PathHandler wraps an slog.Handler to shorten file system paths.
// It intercepts log records and rewrites every occurrence of the user's home
// directory in string and error values to "~" before passing them to the
// underlying handler.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Components only ever see a plain *slog.Logger
//
// Corpus directories usually live under the home directory, so logs and
// reports shared with others would otherwise carry the local user name.
type PathHandler struct {
	// handler is the underlying slog handler that receives rewritten records.
	handler slog.Handler

	// home is the cleaned home directory without a trailing separator.
	// Empty disables rewriting.
	home string
}

// NewPathHandler creates a new PathHandler wrapping the given handler.
// If handler is nil, the returned PathHandler will use slog.Default().Handler().
// If home is empty, the current user's home directory is used.
func NewPathHandler(handler slog.Handler, home string) *PathHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home != "" {
		home = filepath.Clean(home)
	}
	// Rewriting "/" would mangle every absolute path.
	if home == string(filepath.Separator) {
		home = ""
	}
	return &PathHandler{handler: handler, home: home}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *PathHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's message and attributes and passes it to the
// underlying handler.
func (h *PathHandler) Handle(ctx context.Context, r slog.Record) error {
	rewritten := slog.NewRecord(r.Time, r.Level, h.shorten(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		rewritten.AddAttrs(h.rewriteAttr(a))
		return true
	})

	return h.handler.Handle(ctx, rewritten)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are rewritten before being added.
func (h *PathHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rewritten := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rewritten[i] = h.rewriteAttr(a)
	}
	return &PathHandler{handler: h.handler.WithAttrs(rewritten), home: h.home}
}

// WithGroup returns a new handler with the given group name.
func (h *PathHandler) WithGroup(name string) slog.Handler {
	return &PathHandler{handler: h.handler.WithGroup(name), home: h.home}
}

// rewriteAttr rewrites a single attribute, recursively handling groups.
func (h *PathHandler) rewriteAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		rewritten := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			rewritten[i] = h.rewriteAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(rewritten...)}
	case slog.KindString:
		return slog.String(a.Key, h.shorten(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.shorten(err.Error()))
		}
	}

	return a
}

// shorten replaces the home directory in s with HomeMarker.
// Only whole path components are replaced, so "/home/al" does not touch
// "/home/alice".
func (h *PathHandler) shorten(s string) string {
	if h.home == "" || !strings.Contains(s, h.home) {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		i := strings.Index(rest, h.home)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		end := i + len(h.home)
		b.WriteString(rest[:i])
		if end == len(rest) || rest[end] == filepath.Separator {
			b.WriteString(HomeMarker)
		} else {
			b.WriteString(h.home)
		}
		rest = rest[end:]
	}
	return b.String()
}

// NewLogger creates a new slog.Logger that writes text records with home
// paths shortened.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPathHandler(slog.NewTextHandler(w, handlerOptions(verbose)), ""))
}

// NewJSONLogger creates a new slog.Logger that writes JSON records with home
// paths shortened. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPathHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), ""))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
