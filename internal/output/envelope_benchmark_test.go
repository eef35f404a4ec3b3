package output

import (
	"bytes"
	"encoding/json"
	"testing"
)

func BenchmarkNormalizeData(b *testing.B) {
	b.Run("json_raw_message_array", func(b *testing.B) {
		raw := json.RawMessage(`[{"date":"2024-01-01","count":1},{"date":"2024-01-02","count":2}]`)
		for b.Loop() {
			NormalizeData(raw)
		}
	})

	b.Run("typed_slice", func(b *testing.B) {
		data := []sample{{ID: "a", Mbps: 1}, {ID: "b", Mbps: 2}}
		for b.Loop() {
			NormalizeData(data)
		}
	})
}

func BenchmarkWriterJSON(b *testing.B) {
	data := make([]sample, 100)
	for i := range data {
		data[i] = sample{ID: "loc", Name: "Location", Mbps: float64(i)}
	}
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	for b.Loop() {
		buf.Reset()
		_ = w.OK(data)
	}
}
