package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Fields carries structured context for a log line
type Fields map[string]interface{}

// Logger provides structured logging with optional file output.
// Log lines go to stderr so command output on stdout stays machine-readable.
type Logger struct {
	mu         *sync.Mutex
	level      Level
	jsonFormat bool
	output     io.Writer
	fields     Fields
	logFile    *os.File
	now        func() time.Time
}

// NewLogger creates a logger writing to stderr
func NewLogger(level Level, jsonFormat bool) *Logger {
	return &Logger{
		mu:         &sync.Mutex{},
		level:      level,
		jsonFormat: jsonFormat,
		output:     os.Stderr,
		fields:     make(Fields),
		now:        time.Now,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	l := NewLogger(ERROR+1, false)
	l.output = io.Discard
	return l
}

// NewFileLogger creates a logger that writes to both stderr and path.
// The file is opened for append and created if missing.
func NewFileLogger(path string, level Level, jsonFormat bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger := NewLogger(level, jsonFormat)
	logger.output = io.MultiWriter(logFile, os.Stderr)
	logger.logFile = logFile
	return logger, nil
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, message string, fields Fields) {
	if level < l.level {
		return
	}

	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonFormat {
		entry := LogEntry{
			Timestamp: l.now().Format(time.RFC3339),
			Level:     level.String(),
			Message:   message,
			Fields:    merged,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "failed to marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", l.now().Format("2006-01-02 15:04:05"), level.String(), message)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}
	fmt.Fprintln(l.output, b.String())
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...Fields) {
	l.log(DEBUG, message, first(fields))
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...Fields) {
	l.log(INFO, message, first(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...Fields) {
	l.log(WARN, message, first(fields))
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...Fields) {
	l.log(ERROR, message, first(fields))
}

// WithField returns a child logger carrying key=value on every line
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a child logger carrying fields on every line
func (l *Logger) WithFields(fields Fields) *Logger {
	newFields := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{
		mu:         l.mu,
		level:      l.level,
		jsonFormat: l.jsonFormat,
		output:     l.output,
		fields:     newFields,
		now:        l.now,
	}
}

// ParseLevel parses a log level string, defaulting to INFO
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Close closes the log file if opened
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}
