package timefmt

import (
	"testing"
	"time"
)

func TestLabelComposite(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "firmware timestamp",
			input:    "20240115_143022",
			expected: "14:30",
		},
		{
			name:     "short date part",
			input:    "0115_0930",
			expected: "09:30",
		},
		{
			name:     "time part exactly four digits",
			input:    "20240115_0730",
			expected: "07:30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.input, time.UTC); got != tt.expected {
				t.Errorf("Label(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLabelEpoch(t *testing.T) {
	// 2024-01-15 14:30:22 UTC
	const ms = int64(1705329022000)
	const sec = int64(1705329022)

	msLabel := Label("1705329022000", time.UTC)
	secLabel := Label("1705329022", time.UTC)

	if msLabel != "14:30" {
		t.Errorf("millisecond epoch label = %q, expected 14:30", msLabel)
	}
	if secLabel != msLabel {
		t.Errorf("second epoch label = %q, millisecond label = %q; magnitude heuristic broken", secLabel, msLabel)
	}
	if got := Millis(ms, time.UTC); got != "14:30" {
		t.Errorf("Millis(%d) = %q, expected 14:30", ms, got)
	}
	if got := Millis(sec*1000, time.UTC); got != "14:30" {
		t.Errorf("Millis(%d) = %q, expected 14:30", sec*1000, got)
	}
}

func TestLabelFallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "push id", input: "-NxAbCdEfGh123"},
		{name: "empty string", input: ""},
		{name: "underscore only", input: "_"},
		{name: "non numeric groups", input: "today_morning"},
		{name: "time part too short", input: "20240115_93"},
		{name: "double separator", input: "2024_0115_0930"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.input, time.UTC); got != tt.input {
				t.Errorf("Label(%q) = %q, expected input unchanged", tt.input, got)
			}
		})
	}
}

func TestLabelDeterministic(t *testing.T) {
	first := Label("1705329022000", time.UTC)
	for i := 0; i < 5; i++ {
		if got := Label("1705329022000", time.UTC); got != first {
			t.Fatalf("Label not deterministic: %q then %q", first, got)
		}
	}
}
