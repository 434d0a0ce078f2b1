package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	Logger = nil
	Info("x")
	Debug("x")
	Warn("x")
	Error("x")
	if WithPrefix("p") != nil {
		t.Error("expected nil prefixed logger before init")
	}
}

func TestInitWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "warn"); err != nil {
		t.Fatalf("InitWriter failed: %v", err)
	}
	defer func() { Logger = nil }()

	Info("hidden")
	Warn("shown", "stream", "feed/1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "stream=feed/1") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestInitWriterBadLevel(t *testing.T) {
	if err := InitWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "")
	defer func() { Logger = nil }()

	WithPrefix("cache").Info("evicted")
	if !strings.Contains(buf.String(), "cache") {
		t.Errorf("prefix missing: %q", buf.String())
	}
}
