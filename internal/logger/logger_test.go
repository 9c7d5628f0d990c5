package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")

	l, err := open(path)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	l.logf("DEBUG", "hello %s", "world")
	l.logf("WARN", "count=%d", 3)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "[DEBUG] hello world") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN] count=3") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	for i := 0; i < 2; i++ {
		l, err := open(path)
		if err != nil {
			t.Fatalf("open() error = %v", err)
		}
		l.logf("DEBUG", "run %d", i)
		l.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if got := strings.Count(string(data), "run "); got != 2 {
		t.Errorf("appended log has %d entries, want 2:\n%s", got, data)
	}
}

func TestDiscardIsSilent(t *testing.T) {
	l := discard()
	l.logf("DEBUG", "dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close() on discard logger error = %v", err)
	}
}
