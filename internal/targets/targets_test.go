package targets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestParse(t *testing.T) {
	f, err := Parse([]byte(`
interval: 5m
start: 30 days ago
targets:
  - location: nyc
  - location: nyc
    client_isp: "7922"
  - location: nyc
    client_isp: "7922"
    transit_isp: "3356"
  - location: nyc
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, f.Interval)
	assert.Equal(t, "30 days ago", f.Start)
	assert.Equal(t, []Target{
		{Location: "nyc"},
		{Location: "nyc", ClientIsp: "7922"},
		{Location: "nyc", ClientIsp: "7922", TransitIsp: "3356"},
	}, f.Targets)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":          "targets: [",
		"bad interval":      "interval: soon",
		"short interval":    "interval: 1s",
		"missing location":  "targets:\n  - client_isp: \"1\"",
		"transit no client": "targets:\n  - location: nyc\n    transit_isp: \"3356\"",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Zero(t, f.Interval)
	assert.Empty(t, f.Targets)
}

func TestTargetString(t *testing.T) {
	for _, s := range []string{"nyc", "nyc/7922", "nyc/7922/3356"} {
		tgt, err := ParseTarget(s)
		require.NoError(t, err)
		assert.Equal(t, s, tgt.String())
	}

	_, err := ParseTarget("")
	assert.Error(t, err)
	_, err = ParseTarget("a/b/c/d")
	assert.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - location: nyc\n"), 0o600))

	changed := make(chan File, 4)
	w, err := Watch(context.Background(), path, func(f File, err error) {
		if err == nil {
			changed <- f
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - location: nyc\n  - location: sfo\n"), 0o600))

	select {
	case f := <-changed:
		assert.Len(t, f.Targets, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	require.NoError(t, w.Close())
}

func TestWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: []\n"), 0o600))

	called := make(chan struct{}, 1)
	w, err := Watch(context.Background(), path, func(File, error) {
		called <- struct{}{}
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	select {
	case <-called:
		t.Fatal("reloaded on an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
