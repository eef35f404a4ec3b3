// Package dateparse turns natural language dates into YYYY-MM-DD.
// Measurements only exist in the past, so relative forms count backwards.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parse parses a natural language date string and returns a date in YYYY-MM-DD format.
// Supported formats:
//   - today, yesterday
//   - monday, tuesday, ... and last monday (most recent past occurrence)
//   - last week, last month, last year (same day one period back)
//   - som, start of month, soy, start of year
//   - -N (N days ago)
//   - N days ago, N weeks ago, N months ago, N years ago
//   - YYYY-MM-DD (passthrough), YYYY-MM and YYYY (first day)
func Parse(input string) string {
	return ParseFrom(input, time.Now())
}

// ParseFrom parses a date relative to the given reference time.
func ParseFrom(input string, now time.Time) string {
	input = strings.ToLower(strings.TrimSpace(input))

	switch input {
	case "today", "now":
		return formatDate(now)
	case "yesterday":
		return formatDate(now.AddDate(0, 0, -1))
	case "last week", "lastweek":
		return formatDate(now.AddDate(0, 0, -7))
	case "last month", "lastmonth":
		return formatDate(now.AddDate(0, -1, 0))
	case "last year", "lastyear":
		return formatDate(now.AddDate(-1, 0, 0))
	case "start of month", "som":
		return formatDate(startOfMonth(now))
	case "start of year", "soy":
		y := now.Year()
		return formatDate(time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()))
	}

	if day, ok := parseWeekday(input); ok {
		return formatDate(previousWeekday(now, day))
	}

	// -N days format
	if daysAgoPattern.MatchString(input) {
		days, _ := strconv.Atoi(input[1:])
		return formatDate(now.AddDate(0, 0, -days))
	}

	if match := agoPattern.FindStringSubmatch(input); match != nil {
		n, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "day":
			return formatDate(now.AddDate(0, 0, -n))
		case "week":
			return formatDate(now.AddDate(0, 0, -7*n))
		case "month":
			return formatDate(now.AddDate(0, -n, 0))
		case "year":
			return formatDate(now.AddDate(-n, 0, 0))
		}
	}

	if datePattern.MatchString(input) {
		return input
	}
	if monthPattern.MatchString(input) {
		return input + "-01"
	}
	if yearPattern.MatchString(input) {
		return input + "-01-01"
	}

	// Return as-is if not recognized
	return input
}

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
	agoPattern   = regexp.MustCompile(`^(\d{1,3}) (day|week|month|year)s? ago$`)

	daysAgoPattern = regexp.MustCompile(`^-\d{1,4}$`)
)

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseWeekday(input string) (time.Weekday, bool) {
	input = strings.TrimPrefix(input, "last ")

	switch input {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

// previousWeekday returns the most recent past occurrence of target.
// If today is target, that is a week ago.
func previousWeekday(now time.Time, target time.Weekday) time.Time {
	daysBack := int(now.Weekday() - target)
	if daysBack <= 0 {
		daysBack += 7
	}
	return now.AddDate(0, 0, -daysBack)
}

func startOfMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
}

// IsValid returns true if the input is a recognized date format.
func IsValid(input string) bool {
	return datePattern.MatchString(Parse(input))
}

// MustParse parses a date and panics if it fails.
// Use this only for known-good inputs like constants.
func MustParse(input string) string {
	result := Parse(input)
	if !datePattern.MatchString(result) {
		panic("dateparse: invalid date: " + input)
	}
	return result
}
