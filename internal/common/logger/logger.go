package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trackfit/backend/internal/common/constants"
)

type Fields map[string]any

type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	ERROR
	CRITICAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}

// Logger writes leveled lines of the form
// "[LEVEL] [service] [trace_id=.. key=value] file.go:42 message".
type Logger struct {
	level   Level
	service string
	out     *log.Logger
}

// New builds a logger for service. An empty logDir logs to stdout only;
// otherwise lines are also written to a rotating file in logDir.
func New(logDir, service, level string) (*Logger, error) {
	var w io.Writer = os.Stdout
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, service+".log"),
			MaxSize:    constants.LoggerMaxSize,
			MaxBackups: constants.LoggerMaxBackups,
			MaxAge:     constants.LoggerMaxAge,
			Compress:   true,
		})
	}

	return &Logger{
		level:   ParseLevel(level),
		service: service,
		out:     log.New(w, "", log.LstdFlags),
	}, nil
}

func ParseLevel(value string) Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return DEBUG
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	case "CRITICAL":
		return CRITICAL
	default:
		return INFO
	}
}

func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) WithFields(ctx context.Context, fields Fields) *Entry {
	return &Entry{logger: l, ctx: ctx, fields: fields}
}

func (l *Logger) root() *Entry {
	return &Entry{logger: l}
}

func (l *Logger) Debugf(format string, args ...any) { l.root().write(DEBUG, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.root().write(INFO, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.root().write(WARNING, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.root().write(ERROR, fmt.Sprintf(format, args...)) }

func (l *Logger) Fatalf(format string, args ...any) {
	l.root().write(CRITICAL, fmt.Sprintf(format, args...))
	os.Exit(1)
}

type Entry struct {
	logger *Logger
	ctx    context.Context
	fields Fields
}

func (e *Entry) Debug(msg string) { e.write(DEBUG, msg) }
func (e *Entry) Info(msg string)  { e.write(INFO, msg) }
func (e *Entry) Warn(msg string)  { e.write(WARNING, msg) }
func (e *Entry) Error(msg string) { e.write(ERROR, msg) }

func (e *Entry) Debugf(format string, args ...any) { e.write(DEBUG, fmt.Sprintf(format, args...)) }
func (e *Entry) Infof(format string, args ...any)  { e.write(INFO, fmt.Sprintf(format, args...)) }
func (e *Entry) Warnf(format string, args ...any)  { e.write(WARNING, fmt.Sprintf(format, args...)) }
func (e *Entry) Errorf(format string, args ...any) { e.write(ERROR, fmt.Sprintf(format, args...)) }

func (e *Entry) Criticalf(format string, args ...any) {
	e.write(CRITICAL, fmt.Sprintf(format, args...))
}

// write is always two frames below the caller's call site.
func (e *Entry) write(level Level, msg string) {
	l := e.logger
	if l == nil || !l.Enabled(level) {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", level)
	if l.service != "" {
		fmt.Fprintf(&b, " [%s]", l.service)
	}
	if kv := e.pairs(); len(kv) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(kv, " "))
	}

	file, line := "unknown", 0
	if _, path, n, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(path), n
	}
	fmt.Fprintf(&b, " %s:%d %s", file, line, newlineEscaper.Replace(msg))

	_ = l.out.Output(0, b.String())
}

func (e *Entry) pairs() []string {
	var kv []string
	if e.ctx != nil {
		if traceID, ok := e.ctx.Value(constants.TraceIDKey).(string); ok && traceID != "" {
			kv = append(kv, "trace_id="+formatValue(traceID))
		}
	}

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k+"="+formatValue(e.fields[k]))
	}
	return kv
}

// formatValue quotes values that could be mistaken for log structure.
func formatValue(v any) string {
	s := fmt.Sprint(v)
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r == '"' || r == '=' || r == '[' || r == ']' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return strconv.Quote(s)
		}
	}
	return s
}

var newlineEscaper = strings.NewReplacer("\r\n", `\r\n`, "\n", `\n`, "\r", `\r`)
