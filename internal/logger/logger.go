// Package logger provides the slog handler and rotating log file used by
// ccblock.
//
// Log output format:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, key2=value2
//
// Custom levels beyond the standard slog set:
//   - LevelTrace (-8): per-file and per-horizon scan tracing
//   - LevelFail  (12): unrecoverable errors
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ///////////////////////////////////////////////
// Custom Levels
// ///////////////////////////////////////////////

const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug // -4
	LevelInfo  slog.Level = slog.LevelInfo  // 0
	LevelWarn  slog.Level = slog.LevelWarn  // 4
	LevelError slog.Level = slog.LevelError // 8
	LevelFail  slog.Level = 12
)

// levelNames is ordered by ascending threshold; the first entry whose
// threshold is >= the record level wins.
var levelNames = []struct {
	max  slog.Level
	name string
}{
	{LevelTrace, "TRACE"},
	{LevelDebug, "DEBUG"},
	{LevelInfo, "INFO"},
	{LevelWarn, "WARN"},
	{LevelError, "ERROR"},
}

// levelName returns the display name for a log level.
func levelName(l slog.Level) string {
	for _, n := range levelNames {
		if l <= n.max {
			return n.name
		}
	}
	return "FAIL"
}

// ParseLevel converts a level string to slog.Level.
// Supports: trace, debug, info, warn, error, fail (case-insensitive).
// Returns LevelInfo for unrecognized strings.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fail":
		return LevelFail
	default:
		return LevelInfo
	}
}

// ///////////////////////////////////////////////
// Handler
// ///////////////////////////////////////////////

// lineEnding is CRLF on Windows, LF elsewhere.
var lineEnding = "\n"

func init() {
	if runtime.GOOS == "windows" {
		lineEnding = "\r\n"
	}
}

// Handler is a slog.Handler that writes one line per record:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, ...
type Handler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler
	// prefix is the rendered form of attrs added via WithAttrs, already
	// qualified with whatever group was active when they were added.
	prefix []string
	// group is the dot-joined group applied to record attributes.
	group string
}

// NewHandler creates a Handler that writes to w, filtering records below level.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder
	buf.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	buf.WriteString(" [")
	buf.WriteString(levelName(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	fields := make([]string, 0, len(h.prefix)+r.NumAttrs())
	fields = append(fields, h.prefix...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.group, a)
		return true
	})
	if len(fields) > 0 {
		buf.WriteString(" | ")
		buf.WriteString(strings.Join(fields, ", "))
	}
	buf.WriteString(lineEnding)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes pre-applied.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := make([]string, len(h.prefix), len(h.prefix)+len(attrs))
	copy(prefix, h.prefix)
	for _, a := range attrs {
		prefix = appendAttr(prefix, h.group, a)
	}
	return &Handler{w: h.w, mu: h.mu, level: h.level, prefix: prefix, group: h.group}
}

// WithGroup returns a new Handler whose subsequent attribute keys are
// prefixed with name (e.g. "scan.files").
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{w: h.w, mu: h.mu, level: h.level, prefix: h.prefix, group: qualify(h.group, name)}
}

// appendAttr renders a as key=value, expanding nested groups inline.
func appendAttr(fields []string, group string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fields
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := group
		if a.Key != "" {
			sub = qualify(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			fields = appendAttr(fields, sub, ga)
		}
		return fields
	}
	return append(fields, qualify(group, a.Key)+"="+a.Value.String())
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// ///////////////////////////////////////////////
// Logger Constructor
// ///////////////////////////////////////////////

// Options configures [NewLogger].
type Options struct {
	// Path is the log file; rotation is handled by lumberjack.
	Path string
	// Level is the minimum level written.
	Level slog.Level
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// Stderr also copies every line to os.Stderr.
	Stderr bool
}

// NewLogger creates a slog.Logger that writes to a rotating log file.
// The returned io.Closer must be closed to flush pending writes.
func NewLogger(opts Options) (*slog.Logger, io.Closer) {
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}

	var w io.Writer = lj
	if opts.Stderr {
		w = io.MultiWriter(lj, os.Stderr)
	}
	return slog.New(NewHandler(w, opts.Level)), lj
}

// ///////////////////////////////////////////////
// Helper Functions
// ///////////////////////////////////////////////

// Trace logs a message at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Fail logs a message at LevelFail.
func Fail(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFail, msg, args...)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(NewHandler(io.Discard, LevelFail+1))
}
