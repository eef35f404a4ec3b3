// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/speedviz/speedviz/internal/hostutil"
)

// DefaultBaseURL is the public measurement API.
const DefaultBaseURL = "https://api.speedviz.dev"

// Aggregations accepted by time-ranged endpoints.
var Aggregations = []string{"day", "month", "year"}

// Config holds the resolved configuration.
type Config struct {
	BaseURL         string        `json:"base_url"`
	TimeAggregation string        `json:"time_aggregation"`
	CacheDir        string        `json:"cache_dir"`
	CacheEnabled    bool          `json:"cache_enabled"`
	Format          string        `json:"format"`
	Verbose         int           `json:"verbose"`
	Timeout         time.Duration `json:"timeout"`
	Locale          string        `json:"locale"`
	Stats           bool          `json:"stats"`
	TraceEndpoint   string        `json:"trace_endpoint,omitempty"`

	// Hosts tunes request limits per API host, keyed by host[:port].
	// Only config files set it.
	Hosts map[string]HostLimits `json:"hosts,omitempty"`

	// Sources records which layer set each key.
	Sources map[string]string `json:"-"`
}

// HostLimits overrides the request gate for one API host. Zero fields
// keep the built-in defaults.
type HostLimits struct {
	RequestsPerSecond float64       `json:"requests_per_second,omitempty"`
	Burst             float64       `json:"burst,omitempty"`
	MaxConcurrent     int           `json:"max_concurrent,omitempty"`
	FailureThreshold  int           `json:"failure_threshold,omitempty"`
	Cooldown          time.Duration `json:"cooldown,omitempty"`
}

// hostLimitsFile is HostLimits as written in config files.
type hostLimitsFile struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             float64 `json:"burst"`
	MaxConcurrent     int     `json:"max_concurrent"`
	FailureThreshold  int     `json:"failure_threshold"`
	Cooldown          string  `json:"cooldown"`
}

// LimitsFor returns the limits configured for the host of baseURL.
func (cfg *Config) LimitsFor(baseURL string) HostLimits {
	return cfg.Hosts[hostutil.Host(baseURL)]
}

// mergeHostLimits applies the set fields of each host in layer over cfg.
// Invalid entries are skipped with a warning.
func mergeHostLimits(cfg *Config, layer map[string]hostLimitsFile, path string, warn io.Writer) {
	for key, f := range layer {
		if f.RequestsPerSecond < 0 || f.Burst < 0 || f.MaxConcurrent < 0 || f.FailureThreshold < 0 {
			fmt.Fprintf(warn, "warning: ignoring negative limits for %s in %s\n", key, path)
			continue
		}
		var cooldown time.Duration
		if f.Cooldown != "" {
			d, err := time.ParseDuration(f.Cooldown)
			if err != nil || d <= 0 {
				fmt.Fprintf(warn, "warning: ignoring invalid cooldown %q for %s in %s\n", f.Cooldown, key, path)
				continue
			}
			cooldown = d
		}

		if cfg.Hosts == nil {
			cfg.Hosts = make(map[string]HostLimits)
		}
		host := hostutil.Host(key)
		l := cfg.Hosts[host]
		if f.RequestsPerSecond > 0 {
			l.RequestsPerSecond = f.RequestsPerSecond
		}
		if f.Burst > 0 {
			l.Burst = f.Burst
		}
		if f.MaxConcurrent > 0 {
			l.MaxConcurrent = f.MaxConcurrent
		}
		if f.FailureThreshold > 0 {
			l.FailureThreshold = f.FailureThreshold
		}
		if cooldown > 0 {
			l.Cooldown = cooldown
		}
		cfg.Hosts[host] = l
	}
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values. Zero values are unset.
type FlagOverrides struct {
	BaseURL  string
	Agg      string
	CacheDir string
	NoCache  bool
	Format   string
	Verbose  int
	Timeout  time.Duration
	Locale   string
	Stats    bool
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	cfg := &Config{
		BaseURL:         DefaultBaseURL,
		TimeAggregation: "day",
		CacheDir:        filepath.Join(cacheDir, "speedviz"),
		CacheEnabled:    true,
		Format:          "auto",
		Timeout:         30 * time.Second,
		Sources:         make(map[string]string),
	}
	for _, key := range Keys() {
		cfg.Sources[key] = string(SourceDefault)
	}
	return cfg
}

// Keys lists the configuration keys in display order.
func Keys() []string {
	return []string{
		"base_url", "time_aggregation", "cache_dir", "cache_enabled",
		"format", "verbose", "timeout", "locale", "stats", "trace_endpoint",
	}
}

// Load resolves configuration with precedence
// flags > env > local > global > system > defaults.
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem, os.Stderr)
	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal, os.Stderr)
	for _, path := range localConfigPaths() {
		loadFromFile(cfg, path, SourceLocal, os.Stderr)
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileLayer mirrors the JSON file shape. Pointers distinguish "absent"
// from zero values.
type fileLayer struct {
	BaseURL         *string `json:"base_url"`
	TimeAggregation *string `json:"time_aggregation"`
	CacheDir        *string `json:"cache_dir"`
	CacheEnabled    *bool   `json:"cache_enabled"`
	Format          *string `json:"format"`
	Verbose         *int    `json:"verbose"`
	Timeout         *string `json:"timeout"`
	Locale          *string `json:"locale"`
	Stats           *bool   `json:"stats"`
	TraceEndpoint   *string `json:"trace_endpoint"`

	Hosts map[string]hostLimitsFile `json:"hosts"`
}

func loadFromFile(cfg *Config, path string, source Source, warn io.Writer) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config locations
	if err != nil {
		return
	}

	var layer fileLayer
	if err := json.Unmarshal(data, &layer); err != nil {
		fmt.Fprintf(warn, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// A local config could redirect an authenticated session elsewhere.
	if layer.BaseURL != nil && source == SourceLocal {
		fmt.Fprintf(warn, "warning: ignoring base_url %q from local config at %s\n", *layer.BaseURL, path)
		layer.BaseURL = nil
	}

	set := func(key string) { cfg.Sources[key] = string(source) }
	if v := layer.BaseURL; v != nil && *v != "" {
		cfg.BaseURL = NormalizeBaseURL(*v)
		set("base_url")
	}
	if v := layer.TimeAggregation; v != nil && *v != "" {
		cfg.TimeAggregation = *v
		set("time_aggregation")
	}
	if v := layer.CacheDir; v != nil && *v != "" {
		cfg.CacheDir = *v
		set("cache_dir")
	}
	if v := layer.CacheEnabled; v != nil {
		cfg.CacheEnabled = *v
		set("cache_enabled")
	}
	if v := layer.Format; v != nil && *v != "" {
		cfg.Format = *v
		set("format")
	}
	if v := layer.Verbose; v != nil && *v >= 0 && *v <= 2 {
		cfg.Verbose = *v
		set("verbose")
	}
	if v := layer.Timeout; v != nil && *v != "" {
		if d, err := time.ParseDuration(*v); err == nil && d > 0 {
			cfg.Timeout = d
			set("timeout")
		} else {
			fmt.Fprintf(warn, "warning: ignoring invalid timeout %q in %s\n", *v, path)
		}
	}
	if v := layer.Locale; v != nil && *v != "" {
		cfg.Locale = *v
		set("locale")
	}
	if v := layer.Stats; v != nil {
		cfg.Stats = *v
		set("stats")
	}
	if v := layer.TraceEndpoint; v != nil {
		cfg.TraceEndpoint = *v
		set("trace_endpoint")
	}
	mergeHostLimits(cfg, layer.Hosts, path, warn)
}

// envLayer is parsed from SPEEDVIZ_* variables.
type envLayer struct {
	BaseURL         *string        `env:"BASE_URL"`
	TimeAggregation *string        `env:"AGG"`
	CacheDir        *string        `env:"CACHE_DIR"`
	CacheEnabled    *bool          `env:"CACHE_ENABLED"`
	Format          *string        `env:"FORMAT"`
	Timeout         *time.Duration `env:"TIMEOUT"`
	Locale          *string        `env:"LOCALE"`
	Stats           *bool          `env:"STATS"`
	TraceEndpoint   *string        `env:"TRACE_ENDPOINT"`
}

// LoadFromEnv applies SPEEDVIZ_* environment variables to cfg.
func LoadFromEnv(cfg *Config) error {
	var e envLayer
	opts := env.Options{
		Prefix: "SPEEDVIZ_",
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(false): func(v string) (any, error) { return ParseBool(v) },
		},
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(key string) { cfg.Sources[key] = string(SourceEnv) }
	if e.BaseURL != nil && *e.BaseURL != "" {
		cfg.BaseURL = NormalizeBaseURL(*e.BaseURL)
		set("base_url")
	}
	if e.TimeAggregation != nil && *e.TimeAggregation != "" {
		cfg.TimeAggregation = *e.TimeAggregation
		set("time_aggregation")
	}
	if e.CacheDir != nil && *e.CacheDir != "" {
		cfg.CacheDir = *e.CacheDir
		set("cache_dir")
	}
	if e.CacheEnabled != nil {
		cfg.CacheEnabled = *e.CacheEnabled
		set("cache_enabled")
	}
	if e.Format != nil && *e.Format != "" {
		cfg.Format = *e.Format
		set("format")
	}
	if e.Timeout != nil && *e.Timeout > 0 {
		cfg.Timeout = *e.Timeout
		set("timeout")
	}
	if e.Locale != nil && *e.Locale != "" {
		cfg.Locale = *e.Locale
		set("locale")
	}
	if e.Stats != nil {
		cfg.Stats = *e.Stats
		set("stats")
	}
	if e.TraceEndpoint != nil {
		cfg.TraceEndpoint = *e.TraceEndpoint
		set("trace_endpoint")
	}
	return nil
}

// ApplyOverrides applies non-zero flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	set := func(key string) { cfg.Sources[key] = string(SourceFlag) }
	if o.BaseURL != "" {
		cfg.BaseURL = NormalizeBaseURL(o.BaseURL)
		set("base_url")
	}
	if o.Agg != "" {
		cfg.TimeAggregation = o.Agg
		set("time_aggregation")
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		set("cache_dir")
	}
	if o.NoCache {
		cfg.CacheEnabled = false
		set("cache_enabled")
	}
	if o.Format != "" {
		cfg.Format = o.Format
		set("format")
	}
	if o.Verbose > 0 {
		cfg.Verbose = min(o.Verbose, 2)
		set("verbose")
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
		set("timeout")
	}
	if o.Locale != "" {
		cfg.Locale = o.Locale
		set("locale")
	}
	if o.Stats {
		cfg.Stats = true
		set("stats")
	}
}

// Validate rejects values no command can work with.
func (cfg *Config) Validate() error {
	if !slices.Contains(Aggregations, cfg.TimeAggregation) {
		return fmt.Errorf("time_aggregation %q (from %s) must be one of %s",
			cfg.TimeAggregation, cfg.Sources["time_aggregation"], strings.Join(Aggregations, ", "))
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is empty")
	}
	return nil
}

// Value returns the display value of key, and whether key exists.
func (cfg *Config) Value(key string) (string, bool) {
	switch key {
	case "base_url":
		return cfg.BaseURL, true
	case "time_aggregation":
		return cfg.TimeAggregation, true
	case "cache_dir":
		return cfg.CacheDir, true
	case "cache_enabled":
		return fmt.Sprint(cfg.CacheEnabled), true
	case "format":
		return cfg.Format, true
	case "verbose":
		return fmt.Sprint(cfg.Verbose), true
	case "timeout":
		return cfg.Timeout.String(), true
	case "locale":
		return cfg.Locale, true
	case "stats":
		return fmt.Sprint(cfg.Stats), true
	case "trace_endpoint":
		return cfg.TraceEndpoint, true
	}
	return "", false
}

// SetGlobal writes key=value into the global config file, preserving the
// other keys already there.
func SetGlobal(key, value string) error {
	v, err := ParseValue(key, value)
	if err != nil {
		return err
	}

	path := GlobalConfigPath()
	values := map[string]any{}
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: trusted path
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	values[key] = v

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// LocalConfigPath is the config file `speedviz config set` writes by
// default, relative to the working directory.
func LocalConfigPath() string {
	return filepath.Join(".speedviz", "config.json")
}

// ParseValue validates a raw value for key and converts it to the type
// stored in config files.
func ParseValue(key, value string) (any, error) {
	if _, ok := Default().Value(key); !ok {
		return nil, fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}

	switch key {
	case "cache_enabled", "stats":
		b, err := ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return b, nil
	case "verbose":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 2 {
			return nil, fmt.Errorf("verbose must be 0, 1 or 2")
		}
		return n, nil
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
	case "time_aggregation":
		if !slices.Contains(Aggregations, value) {
			return nil, fmt.Errorf("time_aggregation must be one of %s", strings.Join(Aggregations, ", "))
		}
	case "base_url":
		return NormalizeBaseURL(value), nil
	}
	return value, nil
}

// BoolWords lists the accepted spellings for boolean settings, true forms
// first. Config files use JSON booleans; env and `config set` take these.
var BoolWords = []string{"true", "1", "yes", "on", "false", "0", "no", "off"}

// ParseBool reads one of BoolWords, case-insensitively.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean (use %s)", v, strings.Join(BoolWords, ", "))
}

func systemConfigPath() string {
	return "/etc/speedviz/config.json"
}

// GlobalConfigDir returns the per-user config directory.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "speedviz")
}

// GlobalConfigPath returns the per-user config file.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPaths returns .speedviz/config.json files from the enclosing
// git repository root (or the working directory outside a repository) down
// to the working directory, furthest first.
func localConfigPaths() []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	boundary := dir
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			boundary = d
			break
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	var paths []string
	for d := dir; ; d = filepath.Dir(d) {
		p := filepath.Join(d, ".speedviz", "config.json")
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
		if d == boundary || filepath.Dir(d) == d {
			break
		}
	}
	slices.Reverse(paths)
	return paths
}

// NormalizeBaseURL accepts bare hosts and strips trailing slashes.
func NormalizeBaseURL(url string) string {
	return hostutil.Normalize(url)
}
