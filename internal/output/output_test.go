package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/speedviz/speedviz/internal/presenter"
)

// =============================================================================
// Exit Codes Tests
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeAuth, ExitAuth},
		{CodeForbidden, ExitForbidden},
		{CodeRateLimit, ExitRateLimit},
		{CodeNetwork, ExitNetwork},
		{CodeAPI, ExitAPI},
		{CodeAmbiguous, ExitAmbiguous},
		{CodeUnavailable, ExitUnavailable},
		{"unknown_code", ExitAPI},
		{"", ExitAPI},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ExitCodeFor(tt.code); got != tt.expected {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestErrorMessageIncludesHint(t *testing.T) {
	e := ErrNotFoundHint("location", "atlantis", "Run: speedviz search atlantis")
	want := "location not found: atlantis: Run: speedviz search atlantis"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if e.ExitCode() != ExitNotFound {
		t.Errorf("ExitCode() = %d, want %d", e.ExitCode(), ExitNotFound)
	}
}

func TestErrNetworkWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := ErrNetwork(cause)
	if !errors.Is(e, cause) {
		t.Error("expected ErrNetwork to wrap its cause")
	}
	if !e.Retryable {
		t.Error("network errors should be retryable")
	}
}

func TestErrAPIRetryableOnServerErrors(t *testing.T) {
	if ErrAPI(400, "bad").Retryable {
		t.Error("4xx should not be retryable")
	}
	if !ErrAPI(503, "down").Retryable {
		t.Error("5xx should be retryable")
	}
}

func TestErrRateLimitHint(t *testing.T) {
	if got := ErrRateLimit(30).Hint; got != "Try again in 30 seconds" {
		t.Errorf("hint = %q", got)
	}
	if got := ErrRateLimit(0).Hint; got != "Try again later" {
		t.Errorf("hint = %q", got)
	}
}

func TestErrUnavailable(t *testing.T) {
	e := ErrUnavailable("circuit open", 1500*time.Millisecond)
	if e.Code != CodeUnavailable || !e.Retryable {
		t.Errorf("unexpected error: %+v", e)
	}
	if e.Hint != "Try again in 2s" {
		t.Errorf("hint = %q", e.Hint)
	}
}

func TestAsError(t *testing.T) {
	orig := ErrUsage("bad flag")
	wrapped := errors.Join(errors.New("context"), orig)
	if got := AsError(wrapped); got != orig {
		t.Errorf("AsError should unwrap to the original *Error")
	}

	plain := errors.New("plain")
	got := AsError(plain)
	if got.Code != CodeAPI || got.Message != "plain" || !errors.Is(got, plain) {
		t.Errorf("unexpected conversion: %+v", got)
	}
	if IsRetryable(plain) {
		t.Error("plain errors are not retryable")
	}
	if !IsRetryable(ErrRateLimit(1)) {
		t.Error("rate limit errors are retryable")
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

type sample struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Mbps float64 `json:"download_speed_mbps_median"`
}

func TestWriterJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	err := w.OK([]sample{{ID: "nyc", Name: "New York", Mbps: 42.5}},
		WithSummary("1 location"),
		WithStatus("ready"),
		WithBreadcrumbs(Breadcrumb{Action: "top", Cmd: "speedviz top nyc"}),
	)
	if err != nil {
		t.Fatalf("OK: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.OK || resp.Summary != "1 location" || resp.Status != "ready" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if len(resp.Breadcrumbs) != 1 || resp.Breadcrumbs[0].Cmd != "speedviz top nyc" {
		t.Errorf("unexpected breadcrumbs: %+v", resp.Breadcrumbs)
	}
}

func TestWriterErrEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	if err := w.Err(ErrNotFound("location", "atlantis")); err != nil {
		t.Fatal(err)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.OK || resp.Code != CodeNotFound || resp.Error != "location not found: atlantis" {
		t.Errorf("unexpected error envelope: %+v", resp)
	}
}

func TestWriterYAML(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatYAML, Writer: &buf})
	if err := w.OK(sample{ID: "nyc", Name: "New York", Mbps: 12}); err != nil {
		t.Fatal(err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	data, ok := out["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data: %v", out)
	}
	if data["id"] != "nyc" || data["download_speed_mbps_median"] != 12 {
		t.Errorf("unexpected data: %v", data)
	}
}

func TestWriterQuietIDsCount(t *testing.T) {
	rows := []sample{{ID: "a"}, {ID: "b"}}

	var quiet bytes.Buffer
	if err := New(Options{Format: FormatQuiet, Writer: &quiet}).OK(rows); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(quiet.String(), `"ok"`) {
		t.Errorf("quiet output should omit the envelope: %s", quiet.String())
	}

	var ids bytes.Buffer
	if err := New(Options{Format: FormatIDs, Writer: &ids}).OK(rows); err != nil {
		t.Fatal(err)
	}
	if ids.String() != "a\nb\n" {
		t.Errorf("ids = %q", ids.String())
	}

	var count bytes.Buffer
	if err := New(Options{Format: FormatCount, Writer: &count}).OK(rows); err != nil {
		t.Fatal(err)
	}
	if count.String() != "2\n" {
		t.Errorf("count = %q", count.String())
	}
}

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf, JQ: ".[] | .id"})
	if err := w.OK([]sample{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("jq output = %q", buf.String())
	}

	buf.Reset()
	w = New(Options{Writer: &buf, JQ: "map(.download_speed_mbps_median) | add"})
	if err := w.OK([]sample{{Mbps: 1.5}, {Mbps: 2}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "3.5\n" {
		t.Errorf("jq output = %q", buf.String())
	}
}

func TestWriterJQInvalidExpression(t *testing.T) {
	w := New(Options{Writer: &bytes.Buffer{}, JQ: ".[ | bad"})
	err := w.OK([]int{1})
	if AsError(err).Code != CodeUsage {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatAuto,
		"json":     FormatJSON,
		"yml":      FormatYAML,
		"markdown": FormatMarkdown,
		"styled":   FormatStyled,
		"ids":      FormatIDs,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

// =============================================================================
// Rendering Tests
// =============================================================================

func TestMarkdownRendererTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	err := w.OK([]map[string]any{
		{"date": "2024-01-01", "download_speed_mbps_median": 10.5, "count": 3},
	}, WithSummary("nyc metrics"), WithStatus("ready"))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"## nyc metrics",
		"*Status: ready*",
		"| Date | Download (Mbps) | Count |",
		"| 2024-01-01 | 10.50 | 3 |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestStyledRendererPlainWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	err := r.RenderResponse(&buf, &Response{
		OK:      true,
		Summary: "New York",
		Data:    map[string]any{"id": "nyc", "name": "New York", "date": "2024-03-05"},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI codes in non-TTY output: %q", out)
	}
	if !strings.Contains(out, "Mar 5, 2024") {
		t.Errorf("date not humanized: %s", out)
	}
	if strings.Index(out, "Id") > strings.Index(out, "Name") {
		t.Errorf("id should sort before name: %s", out)
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "yes"},
		{3.0, "3"},
		{3.14159, "3.14"},
		{strings.Repeat("x", 50), strings.Repeat("x", 37) + "..."},
		{[]any{"a", 1.0}, "a, 1"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeData(t *testing.T) {
	raw := json.RawMessage(`[{"id":"a"},{"id":"b"}]`)
	got, ok := NormalizeData(raw).([]map[string]any)
	if !ok || len(got) != 2 {
		t.Fatalf("NormalizeData(raw) = %#v", NormalizeData(raw))
	}

	mixed := NormalizeData([]any{1.0, map[string]any{}})
	if _, ok := mixed.([]any); !ok {
		t.Errorf("mixed slices should stay []any, got %T", mixed)
	}
}

func TestMarkdownUsesEntitySchema(t *testing.T) {
	var buf bytes.Buffer
	loc := presenter.NewLocale("en_US")
	w := New(Options{Format: FormatMarkdown, Writer: &buf, Locale: &loc})
	err := w.OK(map[string]any{
		"id":                         "nyc",
		"label":                      "New York",
		"download_speed_mbps_median": 48.25,
	}, WithEntity("location"), WithSummary("Location nyc"))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"## Location nyc",
		"**New York**",
		"- **Download:** 48.25 Mbps",
		"`speedviz location nyc --hourly`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestUnknownEntityFallsBack(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	if err := w.OK(map[string]any{"id": "nyc"}, WithEntity("nope")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "- **Id:** nyc") {
		t.Errorf("expected generic rendering, got:\n%s", buf.String())
	}
}

func TestEntityNotInJSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	if err := w.OK(map[string]any{"id": "nyc"}, WithEntity("location")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "location") {
		t.Errorf("entity leaked into JSON: %s", buf.String())
	}
}
