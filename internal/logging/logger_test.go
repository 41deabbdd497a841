package logging

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"info":    INFO,
		"warn":    WARN,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentLoggerFormat(t *testing.T) {
	var buf strings.Builder
	r := getRoot()
	r.mu.Lock()
	prevOut, prevLevel := r.out, r.level
	r.out = &buf
	r.level = DEBUG
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.out, r.level = prevOut, prevLevel
		r.mu.Unlock()
	}()

	logger := NewComponentLogger("Test")
	logger.Info("hello %s", "world")

	line := buf.String()
	if !strings.Contains(line, "[INFO]") || !strings.Contains(line, "[Test]") {
		t.Errorf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "hello world") {
		t.Errorf("message missing from log line: %q", line)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := OrNop(nil)
	// Must not panic and must not write anywhere.
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}
