package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "INFO"} {
		if _, err := New(level, &bytes.Buffer{}); err != nil {
			t.Fatalf("level %q: unexpected error %v", level, err)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown log level") {
		t.Fatalf("expected unknown level error, got %v", err)
	}
}

func TestNewWritesToDestination(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("stack applied", "stack", "svc-prod-network")
	if !strings.Contains(buf.String(), "svc-prod-network") {
		t.Fatalf("expected log output to contain stack name, got %q", buf.String())
	}
}
