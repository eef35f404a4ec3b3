package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/auth"
	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/hostutil"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/resilience"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/tui/recents"
	"github.com/speedviz/speedviz/internal/version"
)

// Check represents a single diagnostic check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "fail", "skip", "warn"
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// DoctorResult holds the complete diagnostic results.
type DoctorResult struct {
	Checks  []Check `json:"checks"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Warned  int     `json:"warned"`
	Skipped int     `json:"skipped"`
}

// Summary returns a human-readable summary of the results.
func (r *DoctorResult) Summary() string {
	if r.Failed == 0 && r.Warned == 0 && r.Passed > 0 {
		if r.Skipped > 0 {
			return fmt.Sprintf("All %d checks passed, %d skipped", r.Passed, r.Skipped)
		}
		return fmt.Sprintf("All %d checks passed", r.Passed)
	}
	parts := []string{}
	if r.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", r.Passed))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Warned > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Warned, pluralize(r.Warned, "warning", "warnings")))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	return strings.Join(parts, ", ")
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		resetGate  bool
		clearCache bool
	)

	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"status"},
		Short:   "Check CLI health and diagnose issues",
		Long: `Run diagnostic checks on configuration, credentials and API connectivity.

The doctor command checks:
  - CLI version
  - Configuration files (existence and validity)
  - Credentials
  - API connectivity
  - Response cache health
  - Circuit breaker and rate limit state for the API host
  - Recently viewed items used by completion

Examples:
  speedviz doctor              # Run all diagnostic checks
  speedviz doctor --json       # Output results as JSON
  speedviz doctor --verbose    # Show additional debug information
  speedviz doctor --reset-gate # Close the circuit and forget rate limits
  speedviz doctor --clear-cache # Drop every cached response`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			checks := runDoctorRepairs(cmd.Context(), app, resetGate, clearCache)
			checks = append(checks, runDoctorChecks(cmd.Context(), app, verbose)...)
			result := summarizeChecks(checks)

			if app.Output.EffectiveFormat() == output.FormatStyled {
				renderDoctorStyled(cmd.OutOrStdout(), result)
				return nil
			}

			breadcrumbs := buildDoctorBreadcrumbs(checks)

			opts := []output.ResponseOption{
				output.WithSummary(result.Summary()),
			}
			if len(breadcrumbs) > 0 {
				opts = append(opts, output.WithBreadcrumbs(breadcrumbs...))
			}

			return app.OK(result, opts...)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show additional debug information")
	cmd.Flags().BoolVar(&resetGate, "reset-gate", false, "Clear circuit breaker, rate limit and bulkhead state for the API host")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Delete every cached response")

	return cmd
}

// runDoctorRepairs applies the requested resets ahead of the checks, so
// the checks report the state that follows.
func runDoctorRepairs(ctx context.Context, app *appctx.App, resetGate, clearCache bool) []Check {
	var checks []Check
	if resetGate {
		check := Check{Name: "Reset Resilience"}
		if gate := app.API.Gate(); gate == nil {
			check.Status = "skip"
			check.Message = "Not configured"
		} else if err := gate.Reset(); err != nil {
			check.Status = "fail"
			check.Message = "Cannot reset state for " + gate.Host()
			check.Hint = fmt.Sprintf("Error: %v", err)
		} else {
			check.Status = "pass"
			check.Message = "Cleared state for " + gate.Host()
		}
		checks = append(checks, check)
	}
	if clearCache {
		check := Check{Name: "Clear Cache"}
		if cache := app.API.Cache(); cache == nil {
			check.Status = "skip"
			check.Message = "Cache disabled"
		} else if err := cache.Clear(ctx); err != nil {
			check.Status = "fail"
			check.Message = "Cannot clear " + cache.Path()
			check.Hint = fmt.Sprintf("Error: %v", err)
		} else {
			check.Status = "pass"
			check.Message = "Cleared " + cache.Path()
		}
		checks = append(checks, check)
	}
	return checks
}

// runDoctorChecks executes all diagnostic checks.
func runDoctorChecks(ctx context.Context, app *appctx.App, verbose bool) []Check {
	checks := []Check{}

	checks = append(checks, checkVersion(verbose))
	if verbose {
		checks = append(checks, checkRuntime())
	}

	checks = append(checks, checkConfigFiles(app, verbose)...)
	checks = append(checks, checkCredentials(app, verbose))
	checks = append(checks, checkTransport(app))

	gate := checkGate(app, verbose)
	checks = append(checks, gate)
	if gate.Status == "fail" {
		checks = append(checks, Check{
			Name:    "API Connectivity",
			Status:  "skip",
			Message: "Skipped (circuit open)",
		})
	} else {
		checks = append(checks, checkAPIConnectivity(ctx, app, verbose))
	}

	checks = append(checks, checkCacheHealth(ctx, app, verbose))
	checks = append(checks, checkRecents(app, verbose))

	return checks
}

// checkVersion reports the build. Development builds are never flagged.
func checkVersion(verbose bool) Check {
	check := Check{Name: "CLI Version", Status: "pass", Message: version.Version}
	if version.IsDev() {
		check.Message = "dev (built from source)"
	}
	if verbose {
		check.Message += fmt.Sprintf(" [commit: %s, date: %s]", version.Commit, version.Date)
	}
	return check
}

// checkRuntime returns Go runtime information.
func checkRuntime() Check {
	return Check{
		Name:    "Runtime",
		Status:  "pass",
		Message: fmt.Sprintf("Go %s (%s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

// checkConfigFiles checks for configuration file existence and validity.
func checkConfigFiles(app *appctx.App, verbose bool) []Check {
	checks := []Check{}

	configPath := config.GlobalConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		checks = append(checks, validateConfigFile(configPath, "Global Config", verbose))
	} else {
		checks = append(checks, Check{
			Name:    "Global Config",
			Status:  "warn",
			Message: "Not found (using defaults)",
			Hint:    "Run: speedviz config set <key> <value>",
		})
	}

	if localPath := findLocalConfig(); localPath != "" {
		checks = append(checks, validateConfigFile(localPath, "Local Config", verbose))
	} else if verbose {
		checks = append(checks, Check{
			Name:    "Local Config",
			Status:  "skip",
			Message: "Not found",
			Hint:    "Create .speedviz/config.json for directory-specific settings",
		})
	}

	if verbose && app.Config != nil {
		details := []string{}
		for _, key := range []string{"base_url", "time_aggregation", "locale"} {
			v, _ := app.Config.Value(key)
			if v == "" {
				continue
			}
			src := app.Config.Sources[key]
			if src == "" {
				src = string(config.SourceDefault)
			}
			details = append(details, fmt.Sprintf("%s=%s [%s]", key, v, src))
		}
		if len(details) > 0 {
			checks = append(checks, Check{
				Name:    "Effective Config",
				Status:  "pass",
				Message: strings.Join(details, ", "),
			})
		}
	}

	return checks
}

// findLocalConfig looks for .speedviz/config.json in the current directory
// or its parents.
func findLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		cfgPath := filepath.Join(dir, ".speedviz", "config.json")
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// validateConfigFile checks if a config file is valid JSON.
func validateConfigFile(path, name string, verbose bool) Check {
	data, err := os.ReadFile(path) //nolint:gosec // G304: trusted path
	if err != nil {
		return Check{
			Name:    name,
			Status:  "fail",
			Message: fmt.Sprintf("Cannot read: %s", path),
			Hint:    fmt.Sprintf("Check file permissions: %v", err),
		}
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Check{
			Name:    name,
			Status:  "fail",
			Message: fmt.Sprintf("Invalid JSON: %s", path),
			Hint:    fmt.Sprintf("JSON error: %v", err),
		}
	}

	msg := path
	if verbose {
		msg = fmt.Sprintf("%s (%d keys)", path, len(cfg))
	}
	return Check{
		Name:    name,
		Status:  "pass",
		Message: msg,
	}
}

// checkCredentials reports where the API token comes from. The public
// API works without one, so a missing token is a skip, not a failure.
func checkCredentials(app *appctx.App, verbose bool) Check {
	check := Check{
		Name: "Credentials",
	}

	st, err := app.Auth.Status()
	if err != nil {
		check.Status = "fail"
		check.Message = "Cannot read stored credentials"
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}

	if !st.Authenticated {
		check.Status = "skip"
		check.Message = "No token (anonymous access)"
		check.Hint = "Run: speedviz auth login"
		return check
	}

	check.Status = "pass"
	switch st.Source {
	case "env":
		check.Message = "Using " + auth.TokenEnv + " environment variable"
	default:
		check.Message = "Stored in " + st.Source
		if verbose && st.Label != "" {
			check.Message += fmt.Sprintf(" (label: %s, saved %s)", st.Label, st.SavedAt.Format(time.DateOnly))
		}
	}
	return check
}

// checkTransport warns when the base URL is plain HTTP to a remote host.
func checkTransport(app *appctx.App) Check {
	check := Check{
		Name:    "Transport",
		Status:  "pass",
		Message: app.Config.BaseURL,
	}
	if !hostutil.IsSecure(app.Config.BaseURL) {
		check.Status = "warn"
		check.Message = app.Config.BaseURL + " (insecure)"
		check.Hint = "Tokens are never sent over plain HTTP to remote hosts"
	}
	return check
}

// checkGate reports the shared circuit breaker and rate limiter state.
func checkGate(app *appctx.App, verbose bool) Check {
	check := Check{
		Name: "Resilience",
	}

	gate := app.API.Gate()
	if gate == nil {
		check.Status = "skip"
		check.Message = "Not configured"
		return check
	}

	snap, err := gate.Snapshot()
	if err != nil {
		check.Status = "warn"
		check.Message = "Cannot read resilience state"
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}

	switch {
	case snap.Circuit == resilience.CircuitOpen:
		check.Status = "fail"
		check.Message = fmt.Sprintf("Circuit open for %s after %d failures", snap.Host, snap.Failures)
		check.Hint = "Requests resume once the circuit half-opens, or run: speedviz doctor --reset-gate"
	case snap.RetryAfterSecs > 0:
		check.Status = "warn"
		check.Message = fmt.Sprintf("Rate limited by %s for %ds", snap.Host, snap.RetryAfterSecs)
	default:
		check.Status = "pass"
		check.Message = fmt.Sprintf("%s circuit %s", snap.Host, snap.Circuit)
	}
	if verbose {
		check.Message += fmt.Sprintf(" [tokens: %.0f, in use: %d/%d]", snap.Tokens, snap.BulkheadInUse, snap.BulkheadCapacity)
	}
	return check
}

// checkAPIConnectivity runs a small search against the API.
func checkAPIConnectivity(ctx context.Context, app *appctx.App, verbose bool) Check {
	check := Check{
		Name: "API Connectivity",
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := speedapi.Search(speedapi.SearchLocations, "a")(ctx, app.API)
	latency := time.Since(start)

	if err != nil {
		check.Status = "fail"
		check.Message = "Cannot reach " + app.API.BaseURL()
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Status = "pass"
	if verbose {
		check.Message = fmt.Sprintf("API reachable (%dms)", latency.Milliseconds())
	} else {
		check.Message = "API reachable"
	}
	return check
}

// checkCacheHealth checks the response cache.
func checkCacheHealth(ctx context.Context, app *appctx.App, verbose bool) Check {
	check := Check{
		Name: "Cache",
	}

	cacheDir := app.Config.CacheDir
	if cacheDir == "" {
		check.Status = "warn"
		check.Message = "Cache directory not configured"
		return check
	}

	if !app.Config.CacheEnabled {
		check.Status = "pass"
		check.Message = "Disabled"
		return check
	}

	info, err := os.Stat(cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			check.Status = "pass"
			check.Message = fmt.Sprintf("%s (will be created on first use)", cacheDir)
			return check
		}
		check.Status = "warn"
		check.Message = fmt.Sprintf("Cannot access: %s", cacheDir)
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}

	if !info.IsDir() {
		check.Status = "fail"
		check.Message = fmt.Sprintf("%s exists but is not a directory", cacheDir)
		return check
	}

	check.Status = "pass"
	check.Message = cacheDir
	if app.API == nil || app.API.Cache() == nil {
		return check
	}
	stats, err := app.API.Cache().Stats(ctx)
	if err != nil {
		check.Status = "warn"
		check.Message = fmt.Sprintf("%s (unreadable)", cacheDir)
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}
	if verbose || stats.Entries > 0 {
		sizeMB := float64(stats.Bytes) / (1024 * 1024)
		check.Message = fmt.Sprintf("%s (%.1f MB, %d entries)", cacheDir, sizeMB, stats.Entries)
	}
	return check
}

// checkRecents reports the recently viewed items that feed completion
// and search --pick.
func checkRecents(app *appctx.App, verbose bool) Check {
	check := Check{Name: "Recents", Status: "pass"}
	if app.Recents == nil {
		check.Status = "skip"
		check.Message = "Not available"
		return check
	}

	locations := len(app.Recents.Get(recents.TypeLocation))
	clients := len(app.Recents.Get(recents.TypeClientIsp))
	transits := len(app.Recents.Get(recents.TypeTransitIsp))
	if locations+clients+transits == 0 {
		check.Message = "None yet"
		check.Hint = "Completion suggests locations and ISPs after you view them"
		return check
	}

	check.Message = fmt.Sprintf("%d %s, %d client %s, %d transit %s",
		locations, pluralize(locations, "location", "locations"),
		clients, pluralize(clients, "ISP", "ISPs"),
		transits, pluralize(transits, "ISP", "ISPs"))
	if verbose {
		check.Message += fmt.Sprintf(" (%s)", filepath.Join(app.Config.CacheDir, "recents.json"))
	}
	return check
}

// summarizeChecks counts results by status.
func summarizeChecks(checks []Check) *DoctorResult {
	result := &DoctorResult{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case "pass":
			result.Passed++
		case "fail":
			result.Failed++
		case "warn":
			result.Warned++
		case "skip":
			result.Skipped++
		}
	}
	return result
}

// buildDoctorBreadcrumbs suggests next steps for failed checks.
func buildDoctorBreadcrumbs(checks []Check) []output.Breadcrumb {
	var breadcrumbs []output.Breadcrumb

	for _, c := range checks {
		if c.Status != "fail" {
			continue
		}

		switch c.Name {
		case "Credentials":
			breadcrumbs = append(breadcrumbs, output.Breadcrumb{
				Action:      "login",
				Cmd:         "speedviz auth login",
				Description: "Store a new API token",
			})
		case "Resilience":
			breadcrumbs = append(breadcrumbs, output.Breadcrumb{
				Action:      "reset",
				Cmd:         "speedviz doctor --reset-gate",
				Description: "Close the circuit and forget rate limits",
			})
		case "API Connectivity", "Global Config", "Local Config":
			breadcrumbs = append(breadcrumbs, output.Breadcrumb{
				Action:      "config",
				Cmd:         "speedviz config show",
				Description: "Review configuration",
			})
		}
	}

	seen := make(map[string]bool)
	unique := []output.Breadcrumb{}
	for _, b := range breadcrumbs {
		if !seen[b.Cmd] {
			seen[b.Cmd] = true
			unique = append(unique, b)
		}
	}

	return unique
}

// pluralize returns singular or plural form based on count.
func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// renderDoctorStyled outputs a human-friendly styled format for TTY.
func renderDoctorStyled(w io.Writer, result *DoctorResult) {
	r := output.NewRenderer(w, false)

	nameStyle := lipgloss.NewStyle().Bold(true)

	icons := map[string]string{
		"pass": r.Success.Render("✓"),
		"fail": r.Error.Render("✗"),
		"warn": r.Warning.Render("!"),
		"skip": r.Muted.Render("○"),
	}
	statusMsg := map[string]lipgloss.Style{
		"pass": r.Success,
		"fail": r.Error,
		"warn": r.Warning,
		"skip": r.Muted,
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Summary.Render("speedviz doctor"))
	fmt.Fprintln(w)

	for _, check := range result.Checks {
		fmt.Fprintf(w, "  %s %s %s\n",
			icons[check.Status],
			nameStyle.Render(check.Name),
			statusMsg[check.Status].Render(check.Message),
		)

		if check.Hint != "" && (check.Status == "fail" || check.Status == "warn") {
			fmt.Fprintf(w, "      %s\n", r.Hint.Render("↳ "+check.Hint))
		}
	}

	fmt.Fprintln(w)

	var summaryParts []string
	if result.Passed > 0 {
		summaryParts = append(summaryParts, r.Success.Render(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		summaryParts = append(summaryParts, r.Error.Render(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Warned > 0 {
		summaryParts = append(summaryParts, r.Warning.Render(fmt.Sprintf("%d %s", result.Warned, pluralize(result.Warned, "warning", "warnings"))))
	}
	if result.Skipped > 0 {
		summaryParts = append(summaryParts, r.Muted.Render(fmt.Sprintf("%d skipped", result.Skipped)))
	}

	fmt.Fprintf(w, "  %s\n", strings.Join(summaryParts, "  "))
	fmt.Fprintln(w)
}
