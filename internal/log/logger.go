// Package log is the structured logger used across dcmview. It keeps a small
// package-level API (Info, Debugf, LogWithFields...) on top of logrus.
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"dcmview/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single structured key/value pair attached to a log line
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger wraps a logrus logger with the dcmview line format
type Logger struct {
	base *logrus.Logger
	file *os.File
}

// Option configures a Logger
type Option func(*Logger)

// WithOutput sends log lines to w
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.base.SetOutput(w)
	}
}

// WithJSON switches to one JSON object per line
func WithJSON() Option {
	return func(l *Logger) {
		l.base.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
}

// WithFile copies every line to the file at path in addition to stdout
func WithFile(path string) Option {
	return func(l *Logger) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", path, err)
			return
		}
		l.file = f
		l.base.SetOutput(io.MultiWriter(os.Stdout, f))
	}
}

// WithoutStdout stops writing to stdout, keeping only a file set by an
// earlier WithFile. Used while a terminal UI owns the screen.
func WithoutStdout() Option {
	return func(l *Logger) {
		if l.file != nil {
			l.base.SetOutput(l.file)
			return
		}
		l.base.SetOutput(io.Discard)
	}
}

// NewLogger creates a logger writing plain lines to stdout unless overridden
func NewLogger(opts ...Option) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&plainFormatter{})

	l := &Logger{base: base}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure replaces the package-level logger
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// Close releases the log file opened by WithFile, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetDebug enables or disables debug lines globally
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// IsDebug reports whether debug lines are enabled
func IsDebug() bool {
	return isDebug.Load()
}

// Entry is a log line builder carrying structured fields
type Entry struct {
	e *logrus.Entry
}

func (l *Logger) entry() *Entry {
	return &Entry{e: logrus.NewEntry(l.base)}
}

// With returns an entry carrying the given fields
func (l *Logger) With(fields ...Field) *Entry {
	return l.entry().With(fields...)
}

// WithContext returns an entry bound to ctx
func (l *Logger) WithContext(ctx context.Context) *Entry {
	if ctx == nil {
		return l.entry()
	}
	return &Entry{e: logrus.NewEntry(l.base).WithContext(ctx)}
}

// With adds fields to the entry
func (e *Entry) With(fields ...Field) *Entry {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Entry{e: e.e.WithFields(data)}
}

// The caller depth below assumes every exported method calls log directly.
const callerDepth = 3

func (e *Entry) log(level logrus.Level, msg string) {
	if level == logrus.DebugLevel && !isDebug.Load() {
		return
	}
	entry := e.e
	if _, file, line, ok := runtime.Caller(callerDepth - 1); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

func (e *Entry) Info(msg string)  { e.log(logrus.InfoLevel, msg) }
func (e *Entry) Warn(msg string)  { e.log(logrus.WarnLevel, msg) }
func (e *Entry) Error(msg string) { e.log(logrus.ErrorLevel, msg) }
func (e *Entry) Debug(msg string) { e.log(logrus.DebugLevel, msg) }

func (e *Entry) Infof(format string, args ...interface{}) {
	e.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string)  { l.entry().log(logrus.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.entry().log(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.entry().log(logrus.ErrorLevel, msg) }
func (l *Logger) Debug(msg string) { l.entry().log(logrus.DebugLevel, msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry().log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry().log(logrus.DebugLevel, fmt.Sprintf(format, args...))
}

// Info logs a formatted informational message
func Info(format string, args ...interface{}) {
	logger.entry().log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Debug logs a message with arguments appended
func Debug(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, fmt.Sprint(args...))
	}
	logger.entry().log(logrus.DebugLevel, msg)
}

// Debugf logs a formatted message
func Debugf(format string, args ...interface{}) {
	logger.entry().log(logrus.DebugLevel, fmt.Sprintf(format, args...))
}

// Warn logs a warning message with arguments appended
func Warn(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, fmt.Sprint(args...))
	}
	logger.entry().log(logrus.WarnLevel, msg)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	logger.entry().log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

// Error logs an error message with arguments appended
func Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, fmt.Sprint(args...))
	}
	logger.entry().log(logrus.ErrorLevel, msg)
}

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) {
	logger.entry().log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// LogWithFields returns an entry on the package-level logger
func LogWithFields(fields ...Field) *Entry {
	return logger.With(fields...)
}

// LogWithError returns an entry describing err, including its kind and the
// typed details carried by dcmview errors.
func LogWithError(err error) *Entry {
	if err == nil {
		return logger.With(F("error", "<nil>"))
	}
	fields := []Field{F("error", err.Error())}

	var kinded interface{ Kind() errors.ErrorKind }
	if errors.As(err, &kinded) {
		fields = append(fields, F("error_kind", int(kinded.Kind())))
	}
	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var decodeErr *errors.DecodeError
	if errors.As(err, &decodeErr) {
		fields = append(fields, F("image_id", decodeErr.ID()))
	}
	var indexErr *errors.IndexOutOfRangeError
	if errors.As(err, &indexErr) {
		fields = append(fields, F("index", indexErr.Index()))
	}
	return logger.With(fields...)
}

// LogError logs err at error level with msg
func LogError(err error, msg string) {
	LogWithError(err).e.Log(logrus.ErrorLevel, msg)
}

// plainFormatter renders "[timestamp] LEVEL: message key=value ..."
type plainFormatter struct{}

func (f *plainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	level := "INFO"
	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		level = "DEBUG"
	case logrus.WarnLevel:
		level = "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		level = "ERROR"
	}
	fmt.Fprintf(&b, "[%s] %s: %s", entry.Time.Format("2006-01-02 15:04:05"), level, entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
