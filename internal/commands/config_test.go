package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/output"
)

func TestAtomicWriteFile_OverwriteExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	// Create initial file
	require.NoError(t, atomicWriteFile(path, []byte(`{"v":1}`)))

	// Overwrite (exercises the Windows pre-remove path)
	require.NoError(t, atomicWriteFile(path, []byte(`{"v":2}`)),
		"overwrite of existing file must succeed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "secret.json")

	require.NoError(t, atomicWriteFile(path, []byte(`{}`)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(),
		"file should have restricted permissions")
}

func TestAtomicWriteFile_NoStaleTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	require.NoError(t, atomicWriteFile(path, []byte(`{}`)))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name() != "config.json" {
			t.Errorf("stale temp file left behind: %s", e.Name())
		}
	}
}

func TestConfigSetLocal(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())
	t.Chdir(t.TempDir())

	_, err := runCommand(t, app, NewConfigCmd(), "set", "time_aggregation", "month")
	require.NoError(t, err)

	env := decodeEnvelope(t, buf)
	assert.Equal(t, "Set time_aggregation = month (local)", env.Summary)

	data, err := os.ReadFile(filepath.Join(".speedviz", "config.json"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"time_aggregation": "month"}, got)
}

func TestConfigSetGlobalTyped(t *testing.T) {
	app, _ := newCommandApp(t, newFakeAPI())

	_, err := runCommand(t, app, NewConfigCmd(), "set", "--global", "cache_enabled", "off")
	require.NoError(t, err)

	data, err := os.ReadFile(config.GlobalConfigPath())
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, false, got["cache_enabled"])
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	tests := map[string][]string{
		"unknown key":     {"set", "nope", "x"},
		"bad aggregation": {"set", "time_aggregation", "week"},
		"bad verbose":     {"set", "verbose", "9"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			app, _ := newCommandApp(t, newFakeAPI())
			t.Chdir(t.TempDir())

			_, err := runCommand(t, app, NewConfigCmd(), args...)
			require.Error(t, err)
			assert.Equal(t, output.CodeUsage, output.AsError(err).Code)

			_, statErr := os.Stat(filepath.Join(".speedviz", "config.json"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestConfigSetKeepsMalformedFile(t *testing.T) {
	app, _ := newCommandApp(t, newFakeAPI())
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(".speedviz", 0700))
	path := filepath.Join(".speedviz", "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	_, err := runCommand(t, app, NewConfigCmd(), "set", "locale", "de-DE")
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}

func TestConfigUnset(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())
	t.Chdir(t.TempDir())

	_, err := runCommand(t, app, NewConfigCmd(), "unset", "locale")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"not_found"`)

	_, err = runCommand(t, app, NewConfigCmd(), "set", "locale", "de-DE")
	require.NoError(t, err)

	buf.Reset()
	_, err = runCommand(t, app, NewConfigCmd(), "unset", "locale")
	require.NoError(t, err)
	assert.Equal(t, "Unset locale (local)", decodeEnvelope(t, buf).Summary)

	buf.Reset()
	_, err = runCommand(t, app, NewConfigCmd(), "unset", "locale")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"not_set"`)
}

func TestConfigInit(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())
	t.Chdir(t.TempDir())

	_, err := runCommand(t, app, NewConfigCmd(), "init")
	require.NoError(t, err)
	assert.Equal(t, "Created: .speedviz/config.json", decodeEnvelope(t, buf).Summary)

	buf.Reset()
	_, err = runCommand(t, app, NewConfigCmd(), "init")
	require.NoError(t, err)
	assert.Contains(t, decodeEnvelope(t, buf).Summary, "already exists")
}

func TestConfigShow(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())
	app.Config.Sources["locale"] = string(config.SourceFlag)

	_, err := runCommand(t, app, NewConfigCmd(), "show")
	require.NoError(t, err)

	env := decodeEnvelope(t, buf)
	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, map[string]string{"value": "en-US", "source": "flag"}, got["locale"])
	assert.Equal(t, "day", got["time_aggregation"]["value"])
	assert.Equal(t, "default", got["time_aggregation"]["source"])
	assert.NotContains(t, got, "trace_endpoint")
}
