package dateparse

import (
	"strings"
	"testing"
	"time"
)

// FuzzParseFrom checks ParseFrom never panics and either recognizes the
// input or hands it back normalized.
func FuzzParseFrom(f *testing.F) {
	seeds := []string{
		"today", "yesterday", "now",
		"monday", "last friday", "sun",
		"last week", "last month", "last year", "som", "soy",
		"-1", "-30", "-", "--1",
		"1 day ago", "30 days ago", "2 weeks ago", "6 months ago", "1 year ago", "ago",
		"2024-01-15", "2024-01", "2024",
		"", " ", "invalid", "next week",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	ref := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)

	f.Fuzz(func(t *testing.T, input string) {
		result := ParseFrom(input, ref)
		if datePattern.MatchString(result) {
			return
		}
		if want := strings.ToLower(strings.TrimSpace(input)); result != want {
			t.Errorf("ParseFrom(%q) = %q, want passthrough %q", input, result, want)
		}
	})
}
