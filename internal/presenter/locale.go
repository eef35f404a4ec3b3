package presenter

import (
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale formats measurements and bucket dates for one language tag.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
	order   dateOrder
}

// DetectLocale reads LC_ALL, LC_NUMERIC, LC_TIME and LANG in that order.
func DetectLocale() Locale {
	for _, name := range []string{"LC_ALL", "LC_NUMERIC", "LC_TIME", "LANG"} {
		if raw := os.Getenv(name); raw != "" {
			return NewLocale(raw)
		}
	}
	return NewLocale("")
}

// NewLocale accepts a POSIX name ("de_DE.UTF-8") or a BCP 47 tag ("de-DE").
// Empty, C, POSIX and unparseable input give en-US.
func NewLocale(raw string) Locale {
	if raw == "C" || raw == "POSIX" {
		raw = ""
	}
	if i := strings.IndexByte(raw, '.'); i != -1 {
		raw = raw[:i]
	}
	tag, _ := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag), order: orderFor(tag)}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// FormatDecimal groups thousands and keeps at most digits fraction digits.
// Whole values print without a fraction.
func (l Locale) FormatDecimal(v float64, digits int) string {
	if v == float64(int64(v)) {
		return l.printer.Sprint(number.Decimal(int64(v)))
	}
	return l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(digits)))
}

// FormatNumber is FormatDecimal with two fraction digits.
func (l Locale) FormatNumber(v float64) string {
	return l.FormatDecimal(v, 2)
}

// FormatMeasure formats a reading with its unit, as in "94.2 Mbps".
func (l Locale) FormatMeasure(v float64, digits int, unit string) string {
	return l.FormatDecimal(v, digits) + " " + unit
}

// FormatPercent formats a fraction, so 0.05 is "5%".
func (l Locale) FormatPercent(v float64) string {
	return l.printer.Sprint(number.Percent(v, number.MaxFractionDigits(2)))
}

// FormatDate formats a day bucket.
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.order.day)
}

// FormatMonth formats a month bucket.
func (l Locale) FormatMonth(t time.Time) string {
	return t.Format(l.order.month)
}

type dateOrder struct {
	day   string
	month string
}

var (
	monthDayYear = dateOrder{day: "Jan 2, 2006", month: "Jan 2006"}
	dayMonthYear = dateOrder{day: "2 Jan 2006", month: "Jan 2006"}
	dayDotMonth  = dateOrder{day: "2. Jan 2006", month: "Jan 2006"}
	yearMonthDay = dateOrder{day: "2006-01-02", month: "2006-01"}
)

var (
	monthFirstRegions = []string{"US", "PH"}
	yearFirstRegions  = []string{"JP", "CN", "KR", "TW", "HU", "LT", "CA"}
	dotRegions        = []string{"DE", "AT", "CH"}
)

// orderFor picks the date order by region. language.Tag infers a region
// for bare languages, so "de" resolves through DE.
func orderFor(tag language.Tag) dateOrder {
	region, _ := tag.Region()
	code := region.String()
	switch {
	case slices.Contains(monthFirstRegions, code):
		return monthDayYear
	case slices.Contains(yearFirstRegions, code):
		return yearMonthDay
	case slices.Contains(dotRegions, code):
		return dayDotMonth
	case code != "ZZ":
		return dayMonthYear
	}
	if base, _ := tag.Base(); base.String() == "en" {
		return monthDayYear
	}
	return dayMonthYear
}
