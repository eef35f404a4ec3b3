// Package tui provides terminal user interface components.
package tui

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ThemeEnv points at a colors.toml file that overrides the user theme.
const ThemeEnv = "SPEEDVIZ_THEME"

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR set: NoColorTheme
//  2. SPEEDVIZ_THEME: that colors.toml file
//  3. $XDG_CONFIG_HOME/speedviz/theme/colors.toml (~/.config by default)
//  4. DefaultTheme
//
// The theme directory can be a symlink into another theme system.
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	if path := os.Getenv(ThemeEnv); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	if theme, err := LoadUserTheme(); err == nil {
		return theme
	}

	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors. Lipgloss renders empty
// colors as plain text.
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Secondary:  empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Background: empty,
		Foreground: empty,
		Border:     empty,
	}
}

// UserThemePath returns where the user's colors.toml lives.
func UserThemePath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "speedviz", "theme", "colors.toml"), nil
}

// LoadUserTheme loads the theme at UserThemePath.
func LoadUserTheme() (Theme, error) {
	path, err := UserThemePath()
	if err != nil {
		return Theme{}, err
	}
	return LoadThemeFromFile(path)
}

// LoadThemeFromFile parses a colors.toml file and returns a Theme.
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}
	return mapColorsToTheme(parseColors(data)), nil
}

// parseColors reads the key = "#hex" lines of a colors.toml file.
// Everything else (tables, comments, non-color values) is skipped.
func parseColors(data []byte) map[string]string {
	result := make(map[string]string)

	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if idx := findInlineComment(value); idx > 0 {
			value = strings.TrimSpace(value[:idx])
		}
		value = strings.Trim(value, `"'`)

		if isValidHexColor(value) {
			result[key] = value
		}
	}

	return result
}

// findInlineComment returns the index of a # outside quotes, or -1.
func findInlineComment(s string) int {
	var quote rune
	for i, c := range s {
		switch {
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && c == '#':
			return i
		}
	}
	return -1
}

// isValidHexColor checks for #RGB or #RRGGBB.
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range strings.ToLower(hex) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// mapColorsToTheme maps terminal palette names onto theme roles:
//
//	accent, color4      Primary
//	color7              Secondary
//	color2              Success (download/upload within range)
//	color3              Warning
//	color1              Error
//	color8, color0      Muted, Border
//	background          Background
//	foreground          Foreground
//
// Terminal themes are usually dark, so only Dark variants are replaced.
func mapColorsToTheme(colors map[string]string) Theme {
	defaults := DefaultTheme()

	dark := func(base lipgloss.AdaptiveColor, keys ...string) lipgloss.AdaptiveColor {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				return lipgloss.AdaptiveColor{Light: base.Light, Dark: v}
			}
		}
		return base
	}

	return Theme{
		Primary:    dark(defaults.Primary, "accent", "color4"),
		Secondary:  dark(defaults.Secondary, "color7"),
		Success:    dark(defaults.Success, "color2"),
		Warning:    dark(defaults.Warning, "color3"),
		Error:      dark(defaults.Error, "color1"),
		Muted:      dark(defaults.Muted, "color8", "color0"),
		Background: dark(defaults.Background, "background"),
		Foreground: dark(defaults.Foreground, "foreground"),
		Border:     dark(defaults.Border, "color8", "color0"),
	}
}
