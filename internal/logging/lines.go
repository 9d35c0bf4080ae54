package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Line is a human-readable progress line for a front end.
type Line struct {
	Level slog.Level
	Text  string
}

// Tag returns the severity tag of the line.
func (l Line) Tag() string {
	switch {
	case l.Level >= slog.LevelError:
		return "[ERROR]"
	case l.Level >= slog.LevelWarn:
		return "[WARNING]"
	case l.Level >= slog.LevelInfo:
		return "[INFO]"
	default:
		return "[DEBUG]"
	}
}

// String renders the line with its tag.
func (l Line) String() string {
	return l.Tag() + " " + l.Text
}

// LineHandler forwards records to a sink as Lines, then to the next handler.
type LineHandler struct {
	next  slog.Handler
	sink  func(Line)
	attrs []slog.Attr
}

// NewLineHandler wraps next. Attributes are rendered as key=value after
// the message.
func NewLineHandler(next slog.Handler, sink func(Line)) *LineHandler {
	return &LineHandler{next: next, sink: sink}
}

// Enabled implements slog.Handler.
func (h *LineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *LineHandler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Key == "component" || a.Key == "run_id" {
			return true
		}
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	h.sink(Line{Level: r.Level, Text: sb.String()})
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LineHandler{next: h.next.WithAttrs(attrs), sink: h.sink, attrs: merged}
}

// WithGroup implements slog.Handler. Grouped attributes are still shown
// flat in progress lines.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	return &LineHandler{next: h.next.WithGroup(name), sink: h.sink, attrs: h.attrs}
}
