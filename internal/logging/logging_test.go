package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", &buf)

	logger.Info("listening", "port", 8080)

	out := buf.String()
	if !strings.Contains(out, "service=overhill") {
		t.Errorf("output missing service attribute: %q", out)
	}
	if !strings.Contains(out, "port=8080") {
		t.Errorf("output missing record attributes: %q", out)
	}
}

func TestNewLevelFiltering(t *testing.T) {
	cases := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"WARN", false},
		{"nonsense", false},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		logger := New(tc.level, &buf)
		logger.Debug("verbose detail")

		got := buf.Len() > 0
		if got != tc.wantDebug {
			t.Errorf("level %q: debug emitted = %v, want %v", tc.level, got, tc.wantDebug)
		}
	}
}
