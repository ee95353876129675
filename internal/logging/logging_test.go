package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	logger := NewWriterLogger(&stdout, &stderr, false)
	logger.SetLevel(DebugLevel)

	logger.Debug("debug line")
	logger.Info("info line", Fields{"note": "A4"})
	logger.Warn("warn line")
	logger.Error(errors.New("boom"), "error line")

	out := stdout.String()
	if !strings.Contains(out, "[DEBUG] debug line") || !strings.Contains(out, "[INFO] info line note=A4") {
		t.Fatalf("unexpected stdout: %q", out)
	}
	errOut := stderr.String()
	if !strings.Contains(errOut, "[WARN] warn line") || !strings.Contains(errOut, "[ERROR] error line: boom") {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
}

func TestDefaultLoggerFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	logger := NewWriterLogger(&stdout, &stderr, false)
	logger.SetLevel(WarnLevel)

	logger.Info("hidden")
	logger.Warn("shown")

	if stdout.Len() != 0 {
		t.Errorf("info should be filtered, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "shown") {
		t.Errorf("warn missing from stderr: %q", stderr.String())
	}
}

func TestWithFieldsAndContext(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	logger := NewWriterLogger(&stdout, &stdout, false)

	child := logger.WithFields(Fields{"component": "pitch"})
	ctx := ContextWithFields(context.Background(), Fields{"request": "r1"})
	child.WithContext(ctx).Info("estimated")

	line := stdout.String()
	if !strings.Contains(line, "component=pitch") || !strings.Contains(line, "request=r1") {
		t.Fatalf("fields not merged: %q", line)
	}

	// level changes on the parent reach children
	logger.SetLevel(ErrorLevel)
	stdout.Reset()
	child.Info("quiet")
	if stdout.Len() != 0 {
		t.Fatalf("child ignored parent level: %q", stdout.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
