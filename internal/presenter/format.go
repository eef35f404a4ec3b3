package presenter

import (
	"fmt"
	"strings"
	"time"
)

// FormatField formats a field value according to its FieldSpec.
func FormatField(spec FieldSpec, val any, locale Locale) string {
	if val == nil {
		return ""
	}
	switch spec.Format {
	case "mbps":
		return formatUnit(val, locale, 2, "Mbps")
	case "ms":
		return formatUnit(val, locale, 1, "ms")
	case "percent":
		if v, ok := toFloat(val); ok {
			return locale.FormatPercent(v)
		}
	case "count":
		if v, ok := toFloat(val); ok {
			return locale.FormatDecimal(v, 0)
		}
	case "date":
		return formatDate(val, locale)
	case "relative_time":
		return formatRelativeTime(val, time.Now(), locale)
	}
	return formatText(val, locale)
}

func formatUnit(val any, locale Locale, digits int, unit string) string {
	v, ok := toFloat(val)
	if !ok {
		return formatText(val, locale)
	}
	return locale.FormatMeasure(v, digits, unit)
}

// formatDate formats API dates. Month and year buckets keep their
// granularity.
func formatDate(val any, locale Locale) string {
	str, ok := val.(string)
	if !ok || str == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, str); err == nil {
		return locale.FormatDate(t)
	}
	if t, err := time.Parse(time.DateOnly, str); err == nil {
		return locale.FormatDate(t)
	}
	if t, err := time.Parse("2006-01", str); err == nil {
		return locale.FormatMonth(t)
	}
	return str
}

// formatRelativeTime formats a timestamp as relative time (e.g. "2 hours ago").
func formatRelativeTime(val any, now time.Time, locale Locale) string {
	var t time.Time
	switch v := val.(type) {
	case time.Time:
		t = v
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return v
		}
		t = parsed
	default:
		return formatText(val, locale)
	}
	if t.IsZero() {
		return ""
	}

	diff := now.Sub(t)
	switch {
	case diff < 0:
		return locale.FormatDate(t)
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return relativeTimeFormat(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return relativeTimeFormat(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return relativeTimeFormat(int(diff.Hours()/24), "day")
	default:
		return locale.FormatDate(t)
	}
}

// relativeTimeFormat stays English; translating needs a message catalog.
func relativeTimeFormat(n int, unit string) string {
	if n == 1 {
		switch unit {
		case "day":
			return "yesterday"
		case "minute", "hour":
			return "1 " + unit + " ago"
		}
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// formatText converts any value to a string representation.
func formatText(val any, locale Locale) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		return locale.FormatNumber(v)
	case int:
		return locale.FormatDecimal(float64(v), 0)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatText(item, locale))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// toBool converts various types to bool.
func toBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1" || v == "yes"
	case float64:
		return v != 0
	default:
		return false
	}
}
