package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"sort"
	"strings"
	"sync"
)

// DefaultLogger is a colored logger implementation using Go's standard log package
// Debug/Info -> stdout (no color)
// Warn -> stderr (yellow)
// Error -> stderr (red)
// Fatal -> stderr (bold red)
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        Level
	fields       Fields
	useColors    bool
}

// NewDefaultLogger creates a new default logger with colored output
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		stdoutLogger: log.New(os.Stdout, "", log.LstdFlags),
		stderrLogger: log.New(os.Stderr, "", log.LstdFlags),
		level:        InfoLevel,
		fields:       make(Fields),
		useColors:    isTerminal(),
	}
}

// NewDefaultLoggerTo creates an uncolored logger writing to the given sinks.
// A nil errOut sends every level to out.
func NewDefaultLoggerTo(out, errOut io.Writer) *DefaultLogger {
	if errOut == nil {
		errOut = out
	}
	return &DefaultLogger{
		stdoutLogger: log.New(out, "", 0),
		stderrLogger: log.New(errOut, "", 0),
		level:        InfoLevel,
		fields:       make(Fields),
		useColors:    false,
	}
}

// isTerminal reports whether stdout is a character device
func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := make(Fields)
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level.String(), msg)

	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}

	// Sorted keys keep sampler logs diffable between runs
	if len(allFields) > 0 {
		keys := make([]string, 0, len(allFields))
		for k := range allFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, allFields[k])
		}
	}

	logMsg := b.String()
	if d.useColors {
		switch level {
		case WarnLevel:
			logMsg = ColorYellow + logMsg + ColorReset
		case ErrorLevel:
			logMsg = ColorRed + logMsg + ColorReset
		case FatalLevel:
			logMsg = ColorBold + ColorRed + logMsg + ColorReset
		}
	}

	return logMsg
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	formattedMsg := d.formatMessage(level, err, msg, fields...)

	switch level {
	case DebugLevel, InfoLevel:
		d.stdoutLogger.Println(formattedMsg)
	case WarnLevel, ErrorLevel:
		d.stderrLogger.Println(formattedMsg)
	case FatalLevel:
		d.stderrLogger.Println(formattedMsg)
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields)
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		stdoutLogger: d.stdoutLogger,
		stderrLogger: d.stderrLogger,
		level:        d.level,
		fields:       newFields,
		useColors:    d.useColors,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything. Used when a caller passes a nil logger.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}

// Entry is a single record captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// Recorder keeps log entries in memory. Loggers derived through WithFields
// share the parent's entry list.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  Fields
	level   Level
}

// NewRecorder returns an empty Recorder that keeps every level.
func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  make(Fields),
		level:   DebugLevel,
	}
}

func (r *Recorder) record(level Level, err error, msg string, fields ...Fields) {
	if level < r.level {
		return
	}
	all := make(Fields)
	maps.Copy(all, r.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
	r.mu.Unlock()
}

func (r *Recorder) Debug(msg string, fields ...Fields) { r.record(DebugLevel, nil, msg, fields...) }
func (r *Recorder) Info(msg string, fields ...Fields)  { r.record(InfoLevel, nil, msg, fields...) }
func (r *Recorder) Warn(msg string, fields ...Fields)  { r.record(WarnLevel, nil, msg, fields...) }
func (r *Recorder) Error(err error, msg string, fields ...Fields) {
	r.record(ErrorLevel, err, msg, fields...)
}
func (r *Recorder) Fatal(err error, msg string, fields ...Fields) {
	r.record(FatalLevel, err, msg, fields...)
}

func (r *Recorder) WithFields(fields Fields) Logger {
	merged := make(Fields)
	maps.Copy(merged, r.fields)
	maps.Copy(merged, fields)
	return &Recorder{mu: r.mu, entries: r.entries, fields: merged, level: r.level}
}

func (r *Recorder) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return r.WithFields(fields)
	}
	return r
}

func (r *Recorder) SetLevel(level Level) {
	r.level = level
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns how many entries were recorded at the given level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
