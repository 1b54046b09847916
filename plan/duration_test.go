package plan

import (
	"errors"
	"testing"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"30s", 30},
		{"5m", 300},
		{"2h", 7200},
		{"7d", 604800},
		{"1d2h", 93600},
		{"1D2H", 93600},
		{"2h30m15s", 9015},
		{"1d 2h", 93600},
		{"0s", 0},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.text)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestParseDurationCompoundSumsComponents(t *testing.T) {
	whole, err := ParseDuration("1d2h")
	if err != nil {
		t.Fatalf("parse compound: %v", err)
	}
	day, err := ParseDuration("1d")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	hours, err := ParseDuration("2h")
	if err != nil {
		t.Fatalf("parse hours: %v", err)
	}
	if whole != day+hours {
		t.Fatalf("compound %d != %d + %d", whole, day, hours)
	}
}

func TestParseDurationDropsTrailingRun(t *testing.T) {
	// A trailing digit run with no unit marker contributes nothing. This is
	// long-standing operator-visible behavior; the test pins it.
	got, err := ParseDuration("1d25")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != 86400 {
		t.Fatalf("expected trailing run dropped, got %d", got)
	}

	got, err = ParseDuration("25")
	if err != nil {
		t.Fatalf("parse bare run: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected bare run to parse as 0, got %d", got)
	}
}

func TestParseDurationEmpty(t *testing.T) {
	for _, text := range []string{"", "   "} {
		_, err := ParseDuration(text)
		var invalid InvalidDurationError
		if !errors.As(err, &invalid) {
			t.Fatalf("parse %q: expected InvalidDurationError, got %v", text, err)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{30, "30s"},
		{300, "5m"},
		{93600, "1d 2h"},
		{90061, "1d 1h 1m 1s"},
		{86400, "1d"},
		{3661, "1h 1m 1s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Fatalf("format %d: got %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatDurationExpired(t *testing.T) {
	if got := FormatDuration(0); got != "Expired" {
		t.Fatalf("format 0: got %q", got)
	}
	if got := FormatDuration(-90); got != "Expired" {
		t.Fatalf("format negative: got %q", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, seconds := range []int64{30, 300, 9015, 93600, 90061} {
		text := FormatDuration(seconds)
		back, err := ParseDuration(text)
		if err != nil {
			t.Fatalf("reparse %q: %v", text, err)
		}
		if back != seconds {
			t.Fatalf("round trip %d -> %q -> %d", seconds, text, back)
		}
	}
}
