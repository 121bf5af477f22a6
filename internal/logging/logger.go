// Package logging provides the leveled stderr logger shared by the CLI and
// the MCP server. Output goes to stderr so it never mixes with MCP stdio
// traffic or with JSON printed on stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var levels = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Logger writes "[LEVEL] message" lines to stderr and, optionally, a log file
type Logger struct {
	mu      sync.Mutex
	level   string
	out     io.Writer
	logFile *os.File
}

// Default is used by packages that are not handed a logger explicitly
var Default = New("info")

// New creates a logger writing to stderr at the given level
func New(level string) *Logger {
	return &Logger{level: normalizeLevel(level), out: os.Stderr}
}

// NewWriter creates a logger writing to w, mostly for tests
func NewWriter(level string, w io.Writer) *Logger {
	return &Logger{level: normalizeLevel(level), out: w}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{level: "error", out: io.Discard}
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if _, ok := levels[level]; !ok {
		return "info"
	}
	return level
}

// SetLevel changes the minimum level
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = normalizeLevel(level)
}

// OpenFile mirrors all output to path (appending). The file is trimmed first
// when it grew past maxMB megabytes.
func (l *Logger) OpenFile(path string, maxMB int) error {
	if maxMB > 0 {
		RotateLogFile(path, maxMB)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
	}
	l.logFile = f
	return nil
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// Mirror returns a writer that copies w to the log file when one is open
func (l *Logger) Mirror(w io.Writer) io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return w
	}
	return io.MultiWriter(w, l.logFile)
}

func (l *Logger) shouldLog(msgLevel string) bool {
	return levels[msgLevel] >= levels[l.level]
}

func (l *Logger) write(level, prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.shouldLog(level) {
		return
	}
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
	if l.logFile != nil {
		fmt.Fprintf(l.logFile, prefix+format+"\n", args...)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.write("debug", "[DEBUG] ", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write("info", "[INFO] ", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("warn", "[WARN] ", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write("error", "[ERROR] ", format, args...)
}
