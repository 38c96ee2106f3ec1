// Package logger is the structured request logger of the HTTP layer. It
// writes one flat JSON object per line so the platform's log pipeline can
// index fields without unnesting. Service internals log through log/slog;
// this logger exists for the request path, where the field vocabulary is
// fixed and per-request context is cheap to carry.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Levels
// ─────────────────────────────────────────────────────────────────────────────

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name, case-insensitive. Unknown names mean Info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Fields
// ─────────────────────────────────────────────────────────────────────────────

// Field is one key-value pair on a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field   { return Field{Key: key, Value: value} }

// Err puts the error text under the "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration renders as a human-readable string, not nanoseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Domain field helpers keep key names consistent across handlers.
func StudentID(id string) Field     { return String("student_id", id) }
func XPAmount(xp int) Field         { return Int("xp_amount", xp) }
func StreakDays(days int) Field     { return Int("streak_days", days) }
func BadgeID(id string) Field       { return String("badge_id", id) }
func Reason(r string) Field         { return String("reason", r) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

// Options configures a Logger.
type Options struct {
	Output io.Writer
	Level  Level
}

// DefaultOptions writes Info and above to stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  LevelInfo,
	}
}

// Logger writes JSON lines. The zero value is not usable; construct with New
// or Default. Loggers returned by With share the output and its mutex.
type Logger struct {
	mu     *sync.Mutex
	output io.Writer
	level  Level
	base   []Field
}

// New creates a Logger with the given options.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		mu:     &sync.Mutex{},
		output: opts.Output,
		level:  opts.Level,
	}
}

// Default creates a Logger with default options.
func Default() *Logger {
	return New(DefaultOptions())
}

// With returns a child logger that carries the given fields on every line.
func (l *Logger) With(fields ...Field) *Logger {
	base := make([]Field, 0, len(l.base)+len(fields))
	base = append(base, l.base...)
	base = append(base, fields...)

	return &Logger{
		mu:     l.mu,
		output: l.output,
		level:  l.level,
		base:   base,
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l *Logger) write(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	// Flat object: reserved keys first, then base fields, then call fields.
	// Later duplicates win, which lets a call override a base field.
	line := make(map[string]any, 3+len(l.base)+len(fields))
	line["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	line["level"] = level.String()
	line["msg"] = msg
	for _, f := range l.base {
		line[f.Key] = f.Value
	}
	for _, f := range fields {
		line[f.Key] = f.Value
	}

	data, err := json.Marshal(line)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"ts":%q,"level":%q,"msg":%q,"logger_error":%q}`,
			line["ts"], level.String(), msg, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(data)
	l.output.Write([]byte("\n"))
}
