package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{"info", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.verbose, false)

			log.Debug().Msg("debug line")
			log.Info().Int("z", 16).Msg("info line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if !strings.Contains(out, "info line") {
				t.Errorf("info line missing from %q", out)
			}
		})
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, false)
	logger.Warn().Int("x", 5).Int("y", 7).Msg("tile failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "warn" || entry["message"] != "tile failed" {
		t.Errorf("entry = %v", entry)
	}
	if entry["x"] != float64(5) || entry["y"] != float64(7) {
		t.Errorf("fields = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, true)
	logger.Info().Msg("hello")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("message missing from %q", out)
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("Nop() level = %v, want disabled", log.GetLevel())
	}
}
