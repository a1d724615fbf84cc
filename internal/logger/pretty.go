package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiGray   = "\033[90m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

// PrettyHandler is a slog.Handler for terminal output:
//
//	15:04:05.000 INF message key=value group.key=value
type PrettyHandler struct {
	opts   slog.HandlerOptions
	w      io.Writer
	mu     *sync.Mutex
	prefix string
	attrs  []slog.Attr
}

// NewPrettyHandler creates a new PrettyHandler. A nil opts logs at info level.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: new(sync.Mutex)}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	if !r.Time.IsZero() {
		buf = append(buf, ansiGray...)
		buf = r.Time.AppendFormat(buf, "15:04:05.000")
		buf = append(buf, ansiReset...)
		buf = append(buf, ' ')
	}

	buf = append(buf, ansiBold...)
	buf = append(buf, levelStyle(r.Level)...)
	buf = append(buf, ansiReset...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = appendAttr(buf, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, a, h.prefix)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs resolves the attribute keys against the current group so later
// groups do not apply to them.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func levelStyle(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed + "ERR"
	case level >= slog.LevelWarn:
		return ansiYellow + "WRN"
	case level >= slog.LevelInfo:
		return ansiGreen + "INF"
	default:
		return ansiGray + "DBG"
	}
}

func appendAttr(buf []byte, a slog.Attr, prefix string) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, ga, p)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, ansiCyan...)
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	switch a.Value.Kind() {
	case slog.KindString:
		buf = appendString(buf, a.Value.String())
	case slog.KindTime:
		buf = a.Value.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindDuration:
		buf = append(buf, a.Value.Duration().String()...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			buf = append(buf, ansiRed...)
			buf = appendString(buf, err.Error())
			break
		}
		buf = appendString(buf, fmt.Sprint(a.Value.Any()))
	default:
		buf = append(buf, a.Value.String()...)
	}
	return append(buf, ansiReset...)
}

func appendString(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t\n\r\"=")
}
