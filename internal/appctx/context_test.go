package appctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/observability"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/state"
)

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	t.Setenv("SPEEDVIZ_NO_KEYRING", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(DebugEnv, "")

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.CacheEnabled = false
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	app := NewApp(cfg)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func fetchMetrics() observability.FetchMetrics {
	return observability.FetchMetrics{Resource: "LOCATION_INFO", FetchKey: "nyc", Duration: time.Millisecond}
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t, "")

	assert.NotNil(t, app.Auth)
	assert.NotNil(t, app.API)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Selectors)
	assert.NotNil(t, app.Recents)
	assert.NotNil(t, app.Output)
	assert.Equal(t, 0, app.State().Locations.Len())
}

func TestWithAppAndFromContext(t *testing.T) {
	app := newTestApp(t, "")
	ctx := WithApp(context.Background(), app)
	assert.Same(t, app, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestApplyFlagsFormats(t *testing.T) {
	tests := []struct {
		name  string
		flags GlobalFlags
		want  output.Format
	}{
		{"agent", GlobalFlags{Agent: true, JSON: true}, output.FormatQuiet},
		{"quiet", GlobalFlags{Quiet: true}, output.FormatQuiet},
		{"ids", GlobalFlags{IDsOnly: true}, output.FormatIDs},
		{"count", GlobalFlags{Count: true}, output.FormatCount},
		{"json", GlobalFlags{JSON: true, MD: true}, output.FormatJSON},
		{"styled", GlobalFlags{Styled: true}, output.FormatStyled},
		{"md", GlobalFlags{MD: true}, output.FormatMarkdown},
		{"none", GlobalFlags{}, output.FormatAuto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, "")
			app.Flags = tt.flags
			app.ApplyFlags()
			assert.Equal(t, tt.want, app.Output.Options().Format)
		})
	}
}

func TestNewAppHonoursConfigFormat(t *testing.T) {
	t.Setenv("SPEEDVIZ_NO_KEYRING", "1")
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.CacheEnabled = false
	cfg.Format = "yaml"
	app := NewApp(cfg)
	defer app.Close(context.Background())
	assert.Equal(t, output.FormatYAML, app.Output.Options().Format)
}

func TestVerboseLevel(t *testing.T) {
	app := newTestApp(t, "")
	assert.Equal(t, 0, app.verboseLevel())

	app.Flags.Verbose = 1
	app.ApplyFlags()
	assert.Equal(t, 1, app.Hooks.Level())
	assert.True(t, app.Logger.Enabled(context.Background(), slog.LevelDebug))

	t.Setenv(DebugEnv, "true")
	assert.Equal(t, 2, app.verboseLevel())

	t.Setenv(DebugEnv, "")
	app.Flags.Verbose = 0
	app.ApplyFlags()
	assert.False(t, app.Logger.Enabled(context.Background(), slog.LevelError))
}

func TestIsMachineOutput(t *testing.T) {
	app := newTestApp(t, "")
	assert.False(t, app.isMachineOutput())

	for _, flags := range []GlobalFlags{{Agent: true}, {Quiet: true}, {IDsOnly: true}, {Count: true}, {JQ: ".id"}} {
		app.Flags = flags
		assert.True(t, app.isMachineOutput(), "%+v", flags)
		assert.False(t, app.IsInteractive())
	}

	app.Flags = GlobalFlags{}
	app.Config.Format = "quiet"
	assert.True(t, app.isMachineOutput())
}

func TestOKIncludesStats(t *testing.T) {
	app := newTestApp(t, "")
	var buf bytes.Buffer
	app.Output = output.New(output.Options{Format: output.FormatJSON, Writer: &buf})
	app.Flags.Stats = true

	require.NoError(t, app.OK(map[string]any{"id": "nyc"}))

	var resp output.Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Contains(t, resp.Meta, "stats")
	stats, ok := resp.Meta["stats"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, stats, "fetches")
}

func TestErrPrintsStatsOnlyForHumans(t *testing.T) {
	app := newTestApp(t, "")
	var out, errOut bytes.Buffer
	app.Output = output.New(output.Options{Format: output.FormatJSON, Writer: &out})
	app.stderr = &errOut
	app.Flags.Stats = true
	app.Collector.RecordFetch(fetchMetrics())

	require.NoError(t, app.Err(output.ErrUsage("bad")))
	assert.Contains(t, errOut.String(), "Stats: 1 fetches")

	errOut.Reset()
	app.Flags.Agent = true
	require.NoError(t, app.Err(output.ErrUsage("bad")))
	assert.Empty(t, errOut.String())
}

func TestFetchRunsThroughStore(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/locations/nyc/info", r.URL.Path)
		_, _ = w.Write([]byte(`{"meta":{"id":"nyc","label":"New York"},"results":[]}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, app.Fetch(ctx, state.FetchLocationInfo.FetchIfNeeded("nyc")))
	entry := app.State().Location("nyc")
	assert.True(t, entry.Info.IsFetched)
	assert.Equal(t, "New York", entry.Info.Data.Label)

	// Fresh: no second request.
	require.NoError(t, app.Fetch(ctx, state.FetchLocationInfo.FetchIfNeeded("nyc")))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, app.Collector.Summary().TotalFetches)
	assert.Equal(t, 0, app.Observer.InFlight())
}

func TestFetchFailureSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such location"}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	err := app.Fetch(context.Background(), state.FetchLocationInfo.Fetch("nowhere"))
	require.Error(t, err)
	assert.Equal(t, output.CodeNotFound, output.AsError(err).Code)
	assert.Error(t, app.State().Location("nowhere").Info.Err)
}
