package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeLabel(t *testing.T) {
	tc := []struct {
		name  string
		label string
		want  string
		key   string
	}{
		{
			name:  "basic label",
			label: "Indie Rock",
			want:  "Indie Rock",
			key:   "indie rock",
		},
		{
			name:  "extra whitespace",
			label: "  Indie   Rock  ",
			want:  "Indie Rock",
			key:   "indie rock",
		},
		{
			name:  "mixed case",
			label: "InDiE rOcK",
			want:  "InDiE rOcK",
			key:   "indie rock",
		},
		{
			name:  "empty",
			label: "   ",
			want:  "",
			key:   "",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.label); got != tt.want {
				t.Errorf("NormalizeLabel() = %q, want %q", got, tt.want)
			}
			if got := LabelKey(tt.label); got != tt.key {
				t.Errorf("LabelKey() = %q, want %q", got, tt.key)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "debug", want: log.DebugLevel},
		{in: "WARN", want: log.WarnLevel},
		{in: " error ", want: log.ErrorLevel},
		{in: "", want: log.InfoLevel},
		{in: "chatty", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("writes to provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "run", "abc").Info("hello")

		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "run=abc") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("quiet")

		if buf.Len() != 0 {
			t.Errorf("expected no output below warn level, got %q", buf.String())
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}

func TestMarshalJSON(t *testing.T) {
	t.Run("pretty adds indent and newline", func(t *testing.T) {
		data, err := MarshalJSON(map[string]int{"a": 1}, true)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(data) != "{\n  \"a\": 1\n}\n" {
			t.Errorf("unexpected output %q", string(data))
		}
	})

	t.Run("compact", func(t *testing.T) {
		data, err := MarshalJSON([]string{"x"}, false)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(data) != `["x"]` {
			t.Errorf("unexpected output %q", string(data))
		}
	})
}
