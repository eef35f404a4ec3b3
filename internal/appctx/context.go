// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/speedviz/speedviz/internal/api"
	"github.com/speedviz/speedviz/internal/auth"
	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/observability"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/presenter"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/store"
	"github.com/speedviz/speedviz/internal/tui/recents"
	"github.com/speedviz/speedviz/internal/version"
)

// DebugEnv raises verbosity like -v. "1", "2" or "true".
const DebugEnv = "SPEEDVIZ_DEBUG"

// levelSilent sits above every level the app logs at.
const levelSilent = slog.Level(16)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Auth   *auth.Manager
	API    *api.Client
	Output *output.Writer
	Logger *slog.Logger

	// Store holds fetched resources; Promises runs their requests.
	Store     *store.Store[*state.State]
	Promises  *store.PromiseMiddleware[*state.State]
	Selectors *state.Selectors
	Recents   *recents.Store

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Observer  *observability.FetchObserver

	// Flags holds the global flag values
	Flags GlobalFlags

	logLevel    *slog.LevelVar
	stopTracing func(context.Context) error
	stderr      io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	Agent   bool
	Format  string
	JQ      string

	// Config overrides
	BaseURL  string
	Agg      string
	CacheDir string
	NoCache  bool
	Locale   string

	// Behavior flags
	Verbose int // 0=off, 1=fetches, 2=fetches+requests (stacks with -v -v or -vv)
	Stats   bool
}

// Overrides maps the flags onto config layering.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	return config.FlagOverrides{
		BaseURL:  f.BaseURL,
		Agg:      f.Agg,
		CacheDir: f.CacheDir,
		NoCache:  f.NoCache,
		Format:   f.Format,
		Verbose:  f.Verbose,
		Locale:   f.Locale,
		Stats:    f.Stats,
	}
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, opts ...api.Option) *App {
	level := new(slog.LevelVar)
	level.Set(levelSilent)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	authMgr := auth.NewManager(cfg, os.Stderr)

	// Collector always runs to gather stats; hooks control output verbosity.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriter())
	observer := observability.NewFetchObserver(hooks, nil, logger)

	client := api.NewFromConfig(cfg, authMgr,
		append([]api.Option{api.WithHooks(hooks), api.WithLogger(logger)}, opts...)...)

	promises := store.NewPromiseMiddleware[*state.State](client, store.WithLogger(logger))
	st := store.New[*state.State](state.Reduce, state.New(),
		promises.Middleware(),
		observability.FetchMiddleware[*state.State](observer),
	)

	app := &App{
		Config:    cfg,
		Auth:      authMgr,
		API:       client,
		Logger:    logger,
		Store:     st,
		Promises:  promises,
		Selectors: state.NewSelectors(),
		Recents:   recents.NewStore(cfg.CacheDir),
		Collector: collector,
		Hooks:     hooks,
		Observer:  observer,
		logLevel:  level,
		stderr:    os.Stderr,
	}
	app.Output = app.newWriter(formatFromConfig(cfg.Format))
	return app
}

func formatFromConfig(s string) output.Format {
	f, err := output.ParseFormat(s)
	if err != nil {
		return output.FormatAuto
	}
	return f
}

func (a *App) newWriter(format output.Format) *output.Writer {
	opts := output.Options{
		Format:  format,
		Writer:  os.Stdout,
		Verbose: a.verboseLevel() > 0,
		JQ:      a.Flags.JQ,
	}
	if a.Config.Locale != "" {
		loc := presenter.NewLocale(a.Config.Locale)
		opts.Locale = &loc
	}
	return output.New(opts)
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	// Specific modes first
	format := formatFromConfig(a.Config.Format)
	switch {
	case a.Flags.Agent, a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.IDsOnly:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	a.Output = a.newWriter(format)

	level := a.verboseLevel()
	if a.Hooks != nil {
		a.Hooks.SetLevel(level)
	}
	if level > 0 {
		a.logLevel.Set(slog.LevelDebug)
	} else {
		a.logLevel.Set(levelSilent)
	}
}

// verboseLevel combines flags, config and SPEEDVIZ_DEBUG.
func (a *App) verboseLevel() int {
	level := max(a.Flags.Verbose, a.Config.Verbose)
	if debugEnv := os.Getenv(DebugEnv); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = 2
		}
	}
	return level
}

// StartTracing installs the OTLP exporter when trace_endpoint is set.
func (a *App) StartTracing(ctx context.Context) error {
	stop, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint: a.Config.TraceEndpoint,
		Version:  version.Version,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.stopTracing = stop
	return nil
}

// Close cancels in-flight fetches and flushes spans and the cache.
func (a *App) Close(ctx context.Context) error {
	a.Promises.Close()
	var firstErr error
	if a.stopTracing != nil {
		if err := a.stopTracing(ctx); err != nil {
			firstErr = err
		}
	}
	if err := a.API.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Fetch dispatches msg and waits for any request it starts.
func (a *App) Fetch(ctx context.Context, msg store.Message) error {
	_, err := store.Await(ctx, a.Store.Dispatch(msg))
	return err
}

// State returns the current store state.
func (a *App) State() *state.State {
	return a.Store.GetState()
}

// statsEnabled reports whether session stats should be shown.
func (a *App) statsEnabled() bool {
	return (a.Flags.Stats || a.Config.Stats) && a.Collector != nil
}

// OK outputs a success response, automatically including stats if --stats is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.statsEnabled() {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary().ToMap()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes keep stderr clean.
	if a.statsEnabled() && !a.isMachineOutput() {
		a.printStats()
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Agent || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

func (a *App) printStats() {
	stats := a.Collector.Summary()
	parts := stats.FormatParts()
	if len(parts) == 0 {
		return
	}
	fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.isMachineOutput() || a.Flags.JSON {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
