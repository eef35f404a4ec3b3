package presenter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/speedviz/speedviz/internal/tui"
)

// enUS is the default locale used by most tests.
var enUS = NewLocale("en-US")

func plainOptions(mode RenderMode) Options {
	return Options{Mode: mode, Theme: tui.NoColorTheme(), Locale: enUS}
}

func TestSchemasLoad(t *testing.T) {
	if err := LoadError(); err != nil {
		t.Fatalf("LoadError() = %v", err)
	}
	want := []string{"hourly", "isp", "location", "measurement", "search_result"}
	got := Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestLookupMissing(t *testing.T) {
	if s := LookupByName("nonexistent"); s != nil {
		t.Errorf("Expected nil for nonexistent entity, got %v", s)
	}
}

func TestLocationSchemaRatings(t *testing.T) {
	schema := LookupByName("location")
	if schema == nil {
		t.Fatal("Expected location schema")
	}
	rtt := schema.Fields["rtt_avg"]
	if rtt.Rating == nil || !rtt.Rating.LowerIsBetter {
		t.Fatalf("rtt_avg rating = %+v, want lower_is_better", rtt.Rating)
	}
	if rtt.Format != "ms" {
		t.Errorf("rtt_avg format = %q, want ms", rtt.Format)
	}
}

func TestRatingGrade(t *testing.T) {
	higher := Rating{Good: 25, Poor: 10}
	lower := Rating{Good: 40, Poor: 100, LowerIsBetter: true}

	tests := []struct {
		rating Rating
		v      float64
		want   string
	}{
		{higher, 30, "success"},
		{higher, 25, "success"},
		{higher, 15, "warning"},
		{higher, 10, "error"},
		{lower, 20, "success"},
		{lower, 70, "warning"},
		{lower, 150, "error"},
	}
	for _, tt := range tests {
		if got := tt.rating.Grade(tt.v); got != tt.want {
			t.Errorf("%+v.Grade(%v) = %q, want %q", tt.rating, tt.v, got, tt.want)
		}
	}
}

func TestFormatField(t *testing.T) {
	tests := []struct {
		name string
		spec FieldSpec
		val  any
		want string
	}{
		{"mbps", FieldSpec{Format: "mbps"}, 1234.5, "1,234.5 Mbps"},
		{"mbps integer", FieldSpec{Format: "mbps"}, 12.0, "12 Mbps"},
		{"ms", FieldSpec{Format: "ms"}, 35.4, "35.4 ms"},
		{"percent", FieldSpec{Format: "percent"}, 0.05, "5%"},
		{"count", FieldSpec{Format: "count"}, 12000.0, "12,000"},
		{"date", FieldSpec{Format: "date"}, "2024-01-15", "Jan 15, 2024"},
		{"month bucket", FieldSpec{Format: "date"}, "2024-01", "Jan 2024"},
		{"unparseable date", FieldSpec{Format: "date"}, "soon", "soon"},
		{"nil", FieldSpec{Format: "mbps"}, nil, ""},
		{"text", FieldSpec{}, "Comcast", "Comcast"},
		{"bool", FieldSpec{}, true, "yes"},
		{"non-numeric mbps", FieldSpec{Format: "mbps"}, "n/a", "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatField(tt.spec, tt.val, enUS); got != tt.want {
				t.Errorf("FormatField() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFieldGermanLocale(t *testing.T) {
	de := NewLocale("de_DE.UTF-8")
	if got := FormatField(FieldSpec{Format: "mbps"}, 1234.5, de); got != "1.234,5 Mbps" {
		t.Errorf("got %q, want %q", got, "1.234,5 Mbps")
	}
	if got := FormatField(FieldSpec{Format: "date"}, "2024-01-15", de); got != "15. Jan 2024" {
		t.Errorf("got %q, want %q", got, "15. Jan 2024")
	}
}

func TestLocaleDateOrder(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		raw, date, month string
	}{
		{"en_US.UTF-8", "Jan 15, 2024", "Jan 2024"},
		{"en-GB", "15 Jan 2024", "Jan 2024"},
		{"de", "15. Jan 2024", "Jan 2024"},
		{"ja_JP", "2024-01-15", "2024-01"},
		{"fr-FR", "15 Jan 2024", "Jan 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			loc := NewLocale(tt.raw)
			if got := loc.FormatDate(day); got != tt.date {
				t.Errorf("FormatDate = %q, want %q", got, tt.date)
			}
			if got := FormatField(FieldSpec{Format: "date"}, "2024-01", loc); got != tt.month {
				t.Errorf("month bucket = %q, want %q", got, tt.month)
			}
		})
	}
}

func TestDetectLocalePrefersLCAll(t *testing.T) {
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	t.Setenv("LANG", "en_US.UTF-8")
	if tag := DetectLocale().Tag().String(); tag != "de-DE" {
		t.Errorf("tag = %s, want de-DE", tag)
	}
}

func TestNewLocaleFallsBack(t *testing.T) {
	for _, raw := range []string{"", "C", "POSIX", "!!"} {
		if tag := NewLocale(raw).Tag().String(); tag != "en-US" {
			t.Errorf("NewLocale(%q).Tag() = %s, want en-US", raw, tag)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		val  any
		want string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-time.Minute), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-3 * time.Hour), "3 hours ago"},
		{now.Add(-24 * time.Hour), "yesterday"},
		{now.Add(-30 * 24 * time.Hour), "Dec 18, 2023"},
		{now.Add(-2 * time.Hour).Format(time.RFC3339), "2 hours ago"},
		{time.Time{}, ""},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.val, now, enUS); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.val, got, tt.want)
		}
	}
}

func TestRenderHeadline(t *testing.T) {
	schema := LookupByName("location")
	if got := RenderHeadline(schema, map[string]any{"label": "Claremont"}); got != "Claremont" {
		t.Errorf("headline = %q", got)
	}

	custom := &EntitySchema{
		Identity: Identity{Label: "id"},
		Headline: map[string]string{"stale": "{{.id}} (stale)", "default": "{{.label}}"},
	}
	if got := RenderHeadline(custom, map[string]any{"id": "x", "stale": true}); got != "x (stale)" {
		t.Errorf("conditional headline = %q", got)
	}
	if got := RenderHeadline(custom, map[string]any{"id": "x"}); got != "x" {
		t.Errorf("fallback headline = %q, want identity label", got)
	}
}

func TestPresentLocationDetail(t *testing.T) {
	data := map[string]any{
		"id":                         "nauscaclaremont",
		"label":                      "Claremont",
		"download_speed_mbps_median": 48.5,
		"rtt_avg":                    21.0,
		"count":                      1200.0,
	}

	var buf bytes.Buffer
	if !Present(&buf, data, "location", plainOptions(ModeStyled)) {
		t.Fatal("Present returned false")
	}
	out := buf.String()
	for _, want := range []string{"Claremont", "Medians", "Download", "48.5 Mbps", "21 ms", "1,200", "speedviz top nauscaclaremont"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Period") {
		t.Errorf("empty section should be skipped:\n%s", out)
	}
	if strings.Contains(out, "Upload") {
		t.Errorf("absent field should be skipped:\n%s", out)
	}
}

func TestPresentListMarkdown(t *testing.T) {
	data := []map[string]any{
		{"id": "AS7922", "label": "Comcast | Xfinity", "type": "client"},
		{"id": "AS174", "label": "Cogent", "type": "server"},
	}

	var buf bytes.Buffer
	if !Present(&buf, data, "search_result", plainOptions(ModeMarkdown)) {
		t.Fatal("Present returned false")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header, divider and 2 rows, got:\n%s", buf.String())
	}
	if lines[0] != "| ID | Name | Type |" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], `Comcast \| Xfinity`) {
		t.Errorf("pipe not escaped: %q", lines[2])
	}
}

func TestPresentListStyled(t *testing.T) {
	data := []map[string]any{
		{"date": "2024-01-01", "download_speed_mbps_median": 10.0, "count": 3.0},
	}
	var buf bytes.Buffer
	if !Present(&buf, data, "measurement", plainOptions(ModeStyled)) {
		t.Fatal("Present returned false")
	}
	out := buf.String()
	for _, want := range []string{"Download", "Jan 1, 2024", "10 Mbps"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPresentFallsBack(t *testing.T) {
	var buf bytes.Buffer
	if Present(&buf, map[string]any{}, "unknown", plainOptions(ModeStyled)) {
		t.Error("unknown entity should not be presented")
	}
	if Present(&buf, []map[string]any{}, "location", plainOptions(ModeStyled)) {
		t.Error("empty list should fall back")
	}
	if Present(&buf, "text", "location", plainOptions(ModeStyled)) {
		t.Error("scalar data should fall back")
	}
}

func TestAffordancesNeedTemplateData(t *testing.T) {
	var buf bytes.Buffer
	Present(&buf, map[string]any{"label": "No ID"}, "location", plainOptions(ModeMarkdown))
	if strings.Contains(buf.String(), "#### Next") {
		t.Errorf("affordances without an id should be hidden:\n%s", buf.String())
	}
}
