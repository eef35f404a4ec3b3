// Package targets loads the watch list: the locations, client ISPs and
// transit ISPs `speedviz watch` keeps refreshed.
//
// A targets file is YAML:
//
//	interval: 5m
//	start: 30 days ago
//	targets:
//	  - location: nauscaclaremont
//	  - location: nauscaclaremont
//	    client_isp: "7922"
package targets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinInterval is the shortest refresh interval a file may ask for.
const MinInterval = 10 * time.Second

// Target names one location, optionally narrowed to a client ISP and a
// transit ISP behind it.
type Target struct {
	Location   string `yaml:"location" json:"location"`
	ClientIsp  string `yaml:"client_isp,omitempty" json:"client_isp,omitempty"`
	TransitIsp string `yaml:"transit_isp,omitempty" json:"transit_isp,omitempty"`
}

// String renders the target as location[/client[/transit]].
func (t Target) String() string {
	parts := []string{t.Location}
	if t.ClientIsp != "" {
		parts = append(parts, t.ClientIsp)
	}
	if t.TransitIsp != "" {
		parts = append(parts, t.TransitIsp)
	}
	return strings.Join(parts, "/")
}

// ParseTarget is the inverse of String.
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) > 3 || parts[0] == "" {
		return Target{}, fmt.Errorf("invalid target %q: want location[/client_isp[/transit_isp]]", s)
	}
	var t Target
	t.Location = parts[0]
	if len(parts) > 1 {
		t.ClientIsp = parts[1]
	}
	if len(parts) > 2 {
		t.TransitIsp = parts[2]
	}
	return t, t.Validate()
}

// Validate checks that the ids nest properly.
func (t Target) Validate() error {
	if t.Location == "" {
		return errors.New("target without location")
	}
	if t.TransitIsp != "" && t.ClientIsp == "" {
		return fmt.Errorf("target %s: transit_isp needs client_isp", t.Location)
	}
	return nil
}

// File is a parsed targets file.
type File struct {
	Interval time.Duration `yaml:"-"`
	Start    string        `yaml:"start,omitempty"`
	Targets  []Target      `yaml:"targets"`
}

type rawFile struct {
	Interval string   `yaml:"interval"`
	Start    string   `yaml:"start"`
	Targets  []Target `yaml:"targets"`
}

// Parse decodes and validates a targets document. Duplicate targets are
// dropped, keeping the first.
func Parse(data []byte) (File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return File{}, fmt.Errorf("parse targets: %w", err)
	}

	f := File{Start: raw.Start}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return File{}, fmt.Errorf("parse targets: interval: %w", err)
		}
		if d < MinInterval {
			return File{}, fmt.Errorf("parse targets: interval %s is below %s", d, MinInterval)
		}
		f.Interval = d
	}

	seen := make(map[Target]bool, len(raw.Targets))
	for _, t := range raw.Targets {
		t.Location = strings.TrimSpace(t.Location)
		if err := t.Validate(); err != nil {
			return File{}, fmt.Errorf("parse targets: %w", err)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		f.Targets = append(f.Targets, t)
	}
	return f, nil
}

// Load reads and parses the file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-supplied by design
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}
