package style

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Theme is a named color palette. Widgets refer to its colors through the
// CSS custom properties produced by CSS.
type Theme struct {
	Name string

	Background string
	Foreground string
	Dim        string
	Accent     string

	Border      string
	BorderFocus string
	Title       string

	StatusOK    string
	StatusWarn  string
	StatusError string
}

// tomlTheme is the TOML-serializable representation of a Theme.
type tomlTheme struct {
	Name   string     `toml:"name"`
	Base   tomlBase   `toml:"base"`
	Widget tomlWidget `toml:"widget"`
	Status tomlStatus `toml:"status"`
}

type tomlBase struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Dim        string `toml:"dim"`
	Accent     string `toml:"accent"`
}

type tomlWidget struct {
	Border      string `toml:"border"`
	BorderFocus string `toml:"border_focus"`
	Title       string `toml:"title"`
}

type tomlStatus struct {
	OK    string `toml:"ok"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
}

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// LoadThemeTOML parses a TOML theme definition from raw bytes.
func LoadThemeTOML(data []byte) (Theme, error) {
	var tt tomlTheme
	if err := toml.Unmarshal(data, &tt); err != nil {
		return Theme{}, fmt.Errorf("theme: parse TOML: %w", err)
	}

	t := Theme{
		Name:       tt.Name,
		Background: tt.Base.Background,
		Foreground: tt.Base.Foreground,
		Dim:        tt.Base.Dim,
		Accent:     tt.Base.Accent,

		Border:      tt.Widget.Border,
		BorderFocus: tt.Widget.BorderFocus,
		Title:       tt.Widget.Title,

		StatusOK:    tt.Status.OK,
		StatusWarn:  tt.Status.Warn,
		StatusError: tt.Status.Error,
	}

	if err := validateTheme(t); err != nil {
		return Theme{}, err
	}
	return t, nil
}

// colors maps CSS property names to the theme's colors.
func (t Theme) colors() map[string]string {
	return map[string]string{
		"background":   t.Background,
		"foreground":   t.Foreground,
		"dim":          t.Dim,
		"accent":       t.Accent,
		"border":       t.Border,
		"border-focus": t.BorderFocus,
		"title":        t.Title,
		"status-ok":    t.StatusOK,
		"status-warn":  t.StatusWarn,
		"status-error": t.StatusError,
	}
}

// CSS renders the palette as custom properties on :root, sorted by name.
func (t Theme) CSS() string {
	colors := t.colors()
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "/* theme: %s */\n:root {\n", t.Name)
	for _, name := range names {
		fmt.Fprintf(&b, "  --%s: %s;\n", name, colors[name])
	}
	b.WriteString("}\n")
	return b.String()
}

// validateTheme checks that all color fields are present and valid hex.
func validateTheme(t Theme) error {
	if t.Name == "" {
		return fmt.Errorf("theme: missing required field %q", "name")
	}
	colors := t.colors()
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := colors[name]
		if v == "" {
			return fmt.Errorf("theme: missing required field %q", name)
		}
		if !hexColorRegex.MatchString(v) {
			return fmt.Errorf("theme: field %q has invalid hex color %q", name, v)
		}
	}
	return nil
}
