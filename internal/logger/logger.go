// Package logger writes diagnostic output to a file so it never mixes with
// the interactive terminal UI. Disabled unless VIBEBLOG_DEBUG is set.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Logger struct {
	mu       sync.Mutex
	out      *log.Logger
	file     *os.File
	disabled bool
}

var (
	mu     sync.Mutex
	global = discard()
	inited bool
)

// Init opens the debug log if VIBEBLOG_DEBUG is set. Safe to call more than
// once; only the first call takes effect. Before Init, output is discarded.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if inited {
		return nil
	}
	inited = true
	if os.Getenv("VIBEBLOG_DEBUG") == "" {
		return nil
	}
	l, err := open(defaultPath())
	if err != nil {
		return err
	}
	global = l
	return nil
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vibeblog-debug.log"
	}
	return filepath.Join(home, ".vibeblog", "debug.log")
}

func discard() *Logger {
	return &Logger{out: log.New(io.Discard, "", 0), disabled: true}
}

func open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{out: log.New(f, "", 0), file: f}, nil
}

func get() *Logger {
	mu.Lock()
	defer mu.Unlock()
	return global
}

func (l *Logger) logf(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("%s [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Close flushes and closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func Debugf(format string, args ...any) { get().logf("DEBUG", format, args...) }
func Warnf(format string, args ...any)  { get().logf("WARN", format, args...) }
func Errorf(format string, args ...any) { get().logf("ERROR", format, args...) }

// Close closes the global logger's file handle.
func Close() error { return get().Close() }
