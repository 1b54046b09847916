package plan

import (
	"fmt"
	"strings"
)

var unitSeconds = map[rune]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// InvalidDurationError reports an empty duration string.
type InvalidDurationError struct {
	Text string
}

func (e InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q", e.Text)
}

// ParseDuration converts a human-entered duration string into seconds.
// Digit runs are terminated by one of the unit markers s, m, h or d
// (case-insensitive) and compound forms such as "1d2h" sum their parts.
// A trailing digit run with no unit marker is dropped silently; operators
// rely on this, so it is deliberate behavior, not an error. Only an empty
// string fails.
func ParseDuration(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, InvalidDurationError{Text: text}
	}

	var total int64
	var run int64
	haveRun := false
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			run = run*10 + int64(r-'0')
			haveRun = true
			continue
		}
		unit, ok := unitSeconds[lowerRune(r)]
		if ok && haveRun {
			total += run * unit
		}
		run = 0
		haveRun = false
	}
	return total, nil
}

// FormatDuration renders seconds as a compact human string, largest units
// first with zero components omitted, e.g. "2d 5h 1s". Zero and negative
// inputs render as "Expired"; callers displaying deltas (a reduction is a
// meaningful negative) must check the sign themselves first.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "Expired"
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

func lowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
