// Package observe provides leveled logging for the sensing pipeline.
//
// Grounded on the teacher's apoc/log package: a thin wrapper over the
// standard library log.Logger with Debug/Info/Warn/Error levels and a
// structured-field argument, rather than a third-party logging framework
// (the teacher carries none either — see DESIGN.md).
package observe

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// Level is a logging severity.
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

// Logger is a leveled logger over a single underlying *log.Logger.
type Logger struct {
	level  Level
	base   *log.Logger
	prefix string
}

// New creates a Logger writing to os.Stderr at the given minimum level.
func New(component string, level Level) *Logger {
	return &Logger{
		level:  level,
		base:   log.New(os.Stderr, "", log.LstdFlags),
		prefix: component,
	}
}

// SetLevel adjusts the minimum level logged.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) log(level Level, msg string, fields map[string]any) {
	if level < l.level {
		return
	}
	l.base.Printf("[%s] %s %s%s", level, l.prefix, msg, formatFields(fields))
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }
