// Package logging provides the structured logger used across the service.
//
// Components create a named LoggerV2 and attach key/value Fields to each
// entry. Output is JSON on stdout unless LOG_FORMAT=console.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value pairs for a log entry.
type Fields map[string]interface{}

var (
	baseMu sync.RWMutex
	base   = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Configure sets the global level and output format. Loggers resolve the
// process logger on every write, so those created earlier follow it too.
func Configure(level, format string) {
	configure(os.Stdout, level, format)
}

func configure(w io.Writer, level, format string) {
	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	baseMu.Lock()
	base = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	baseMu.Unlock()
}

// SetOutput redirects every logger to w. Used by tests.
func SetOutput(w io.Writer) {
	baseMu.Lock()
	base = zerolog.New(w).With().Timestamp().Logger()
	baseMu.Unlock()
}

func current() zerolog.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// LoggerV2 is a component-scoped structured logger.
type LoggerV2 struct {
	component string
	fields    Fields
}

// NewLoggerV2 creates a logger tagged with the given component name.
func NewLoggerV2(component string) *LoggerV2 {
	return &LoggerV2{component: component}
}

// With returns a child logger that always carries the given fields.
func (l *LoggerV2) With(fields Fields) *LoggerV2 {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &LoggerV2{component: l.component, fields: merged}
}

func (l *LoggerV2) logger() zerolog.Logger {
	ctx := current().With().Str("component", l.component)
	if len(l.fields) > 0 {
		ctx = ctx.Fields(map[string]interface{}(l.fields))
	}
	return ctx.Logger()
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	zl := l.logger()
	write(zl.Debug(), msg, fields)
}

func (l *LoggerV2) Info(msg string, fields ...Fields) {
	zl := l.logger()
	write(zl.Info(), msg, fields)
}

func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	zl := l.logger()
	write(zl.Warn(), msg, fields)
}

func (l *LoggerV2) Error(msg string, fields ...Fields) {
	zl := l.logger()
	write(zl.Error(), msg, fields)
}

// Fatal logs and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	zl := l.logger()
	write(zl.Fatal(), msg, fields)
}

func write(e *zerolog.Event, msg string, fields []Fields) {
	for _, f := range fields {
		e = e.Fields(map[string]interface{}(f))
	}
	e.Msg(msg)
}

// Info logs at info level on the process logger.
func Info(msg string, fields ...Fields) {
	zl := current()
	write(zl.Info(), msg, fields)
}

// Infof logs a formatted message at info level on the process logger.
func Infof(format string, args ...interface{}) {
	zl := current()
	zl.Info().Msg(fmt.Sprintf(format, args...))
}
