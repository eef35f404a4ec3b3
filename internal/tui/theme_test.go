package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColors(t *testing.T) {
	data := []byte(`# Catppuccin
accent = "#89b4fa"
foreground = '#cdd6f4'   # inline comment
color1 = "#f38ba8"
color2 = "#zzzzzz"
name = "mocha"
[extra]
malformed line
color8="#585b70"
`)
	got := parseColors(data)
	assert.Equal(t, map[string]string{
		"accent":     "#89b4fa",
		"foreground": "#cdd6f4",
		"color1":     "#f38ba8",
		"color8":     "#585b70",
	}, got)
}

func TestIsValidHexColor(t *testing.T) {
	for _, s := range []string{"#fff", "#FFF", "#a1b2c3", "#A1B2C3"} {
		assert.True(t, isValidHexColor(s), s)
	}
	for _, s := range []string{"", "#", "fff", "#ffff", "#ggg", "#12345", "red"} {
		assert.False(t, isValidHexColor(s), s)
	}
}

func TestFindInlineComment(t *testing.T) {
	assert.Equal(t, -1, findInlineComment(`"#fff"`))
	assert.Equal(t, 7, findInlineComment(`"#fff" # note`))
	assert.Equal(t, -1, findInlineComment(`'a#b'`))
}

func TestMapColorsToTheme(t *testing.T) {
	defaults := DefaultTheme()
	theme := mapColorsToTheme(map[string]string{
		"color4": "#0000ff",
		"accent": "#89b4fa",
		"color0": "#111111",
	})

	assert.Equal(t, "#89b4fa", theme.Primary.Dark, "accent wins over color4")
	assert.Equal(t, defaults.Primary.Light, theme.Primary.Light)
	assert.Equal(t, "#111111", theme.Muted.Dark, "color0 is the muted fallback")
	assert.Equal(t, defaults.Error, theme.Error)
}

func writeTheme(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`accent = "#123456"`), 0o644))
}

func unsetNoColor(t *testing.T) {
	t.Helper()
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
}

func TestResolveTheme(t *testing.T) {
	t.Run("NO_COLOR wins", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.Equal(t, NoColorTheme(), ResolveTheme())
	})

	t.Run("theme env file", func(t *testing.T) {
		unsetNoColor(t)
		path := filepath.Join(t.TempDir(), "colors.toml")
		writeTheme(t, path)
		t.Setenv(ThemeEnv, path)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Equal(t, "#123456", ResolveTheme().Primary.Dark)
	})

	t.Run("missing env file falls back to default", func(t *testing.T) {
		unsetNoColor(t)
		t.Setenv(ThemeEnv, "/nonexistent/colors.toml")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Equal(t, DefaultTheme(), ResolveTheme())
	})

	t.Run("user theme", func(t *testing.T) {
		unsetNoColor(t)
		t.Setenv(ThemeEnv, "")
		cfg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", cfg)
		writeTheme(t, filepath.Join(cfg, "speedviz", "theme", "colors.toml"))
		assert.Equal(t, "#123456", ResolveTheme().Primary.Dark)
	})
}

func TestUserThemePathDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	path, err := UserThemePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "speedviz", "theme", "colors.toml"), path)
}
