// Package speedapi describes the measurement API's resources and builds
// the store promises that fetch them.
package speedapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Aggregation is the time bucket of a metrics series.
type Aggregation string

const (
	Day   Aggregation = "day"
	Month Aggregation = "month"
	Year  Aggregation = "year"
)

// ParseAggregation validates s.
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(s)); a {
	case Day, Month, Year:
		return a, nil
	}
	return "", fmt.Errorf("unknown aggregation %q (want day, month or year)", s)
}

// Text is a JSON scalar kept in its textual form. The API sends some
// fields (hour, ASN numbers) as either strings or numbers.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Record is one row of a metrics or hourly series.
type Record struct {
	Date          string   `json:"date"`
	Hour          Text     `json:"hour,omitempty"`
	DownloadMbps  *float64 `json:"download_speed_mbps_median,omitempty"`
	UploadMbps    *float64 `json:"upload_speed_mbps_median,omitempty"`
	RTTAvg        *float64 `json:"rtt_avg,omitempty"`
	RetransmitAvg *float64 `json:"retransmit_avg,omitempty"`
	Count         int      `json:"count"`
}

// Number is a JSON number the API may also send quoted.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", data)
	}
	*n = Number(f)
	return nil
}

func (n *Number) ptr() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// UnmarshalJSON accepts numbers or numeric strings for every metric.
// A fractional count is rounded.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date          string  `json:"date"`
		Hour          Text    `json:"hour"`
		DownloadMbps  *Number `json:"download_speed_mbps_median"`
		UploadMbps    *Number `json:"upload_speed_mbps_median"`
		RTTAvg        *Number `json:"rtt_avg"`
		RetransmitAvg *Number `json:"retransmit_avg"`
		Count         Number  `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		Date:          raw.Date,
		Hour:          raw.Hour,
		DownloadMbps:  raw.DownloadMbps.ptr(),
		UploadMbps:    raw.UploadMbps.ptr(),
		RTTAvg:        raw.RTTAvg.ptr(),
		RetransmitAvg: raw.RetransmitAvg.ptr(),
		Count:         int(math.Round(float64(raw.Count))),
	}
	return nil
}

// Metric names accepted by Record.Metric.
const (
	MetricDownload   = "download_speed_mbps_median"
	MetricUpload     = "upload_speed_mbps_median"
	MetricRTT        = "rtt_avg"
	MetricRetransmit = "retransmit_avg"
	MetricCount      = "count"
)

// Metrics lists the numeric fields in display order.
var Metrics = []string{MetricDownload, MetricUpload, MetricRTT, MetricRetransmit, MetricCount}

// Metric returns the named numeric field and whether it is present.
func (r Record) Metric(name string) (float64, bool) {
	var p *float64
	switch name {
	case MetricDownload:
		p = r.DownloadMbps
	case MetricUpload:
		p = r.UploadMbps
	case MetricRTT:
		p = r.RTTAvg
	case MetricRetransmit:
		p = r.RetransmitAvg
	case MetricCount:
		return float64(r.Count), true
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// HourOfDay parses Hour. It reports false unless Hour is an integer in
// [0, 23].
func (r Record) HourOfDay() (int, bool) {
	h, err := strconv.Atoi(strings.TrimSpace(string(r.Hour)))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Info describes a location, client ISP or transit ISP.
type Info struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Identifier and label keys the API uses for the different entity kinds,
// most specific last.
var (
	idKeys    = []string{"id", "location_key", "client_asn_number", "server_asn_number"}
	labelKeys = []string{"label", "location_name", "client_asn_name", "server_asn_name"}
)

// InfoFromMeta builds an Info from an API meta object.
func InfoFromMeta(meta map[string]any) Info {
	info := Info{Meta: meta}
	for _, k := range idKeys {
		if v := scalar(meta[k]); v != "" {
			info.ID = v
		}
	}
	for _, k := range labelKeys {
		if v := scalar(meta[k]); v != "" {
			info.Label = v
		}
	}
	if info.Label == "" {
		info.Label = info.ID
	}
	info.Type = scalar(meta["type"])
	return info
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// Series is a metrics or hourly response.
type Series struct {
	Meta    map[string]any `json:"meta"`
	Results []Record       `json:"results"`
}

// envelope is the shared response shape.
type envelope[T any] struct {
	Meta    map[string]any `json:"meta"`
	Results T              `json:"results"`
}

// SearchType picks the collection searched.
type SearchType string

const (
	SearchLocations SearchType = "locations"
	SearchClients   SearchType = "clients"
	SearchServers   SearchType = "servers"
)

// ParseSearchType validates s.
func ParseSearchType(s string) (SearchType, error) {
	switch t := SearchType(strings.ToLower(s)); t {
	case SearchLocations, SearchClients, SearchServers:
		return t, nil
	}
	return "", fmt.Errorf("unknown search type %q (want locations, clients or servers)", s)
}
