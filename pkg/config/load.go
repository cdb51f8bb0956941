package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// ParseError reports a configuration file that could not be decoded or
// failed validation.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Format selects the decoder for a configuration document.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatForPath picks the decoder from the file extension. Anything that is
// not .yaml/.yml is treated as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// fileConfig is the on-disk shape shared by the TOML and YAML formats.
type fileConfig struct {
	Vars    map[string]fileVar     `toml:"vars" yaml:"vars"`
	Poll    map[string]filePollVar `toml:"poll" yaml:"poll"`
	Listen  map[string]fileVar     `toml:"listen" yaml:"listen"`
	Sys     map[string]fileSysVar  `toml:"sys" yaml:"sys"`
	Widgets map[string]fileWidget  `toml:"widgets" yaml:"widgets"`
	Windows map[string]fileWindow  `toml:"windows" yaml:"windows"`
}

type fileVar struct {
	Initial any    `toml:"initial" yaml:"initial"`
	Command string `toml:"command" yaml:"command"`
}

type filePollVar struct {
	Initial  any      `toml:"initial" yaml:"initial"`
	Command  string   `toml:"command" yaml:"command"`
	Interval Interval `toml:"interval" yaml:"interval"`
}

type fileSysVar struct {
	Metric   string   `toml:"metric" yaml:"metric"`
	Interval Interval `toml:"interval" yaml:"interval"`
}

type fileWidget struct {
	Params []string      `toml:"params" yaml:"params"`
	Body   fileWidgetUse `toml:"body" yaml:"body"`
}

type fileWidgetUse struct {
	Type     string          `toml:"type" yaml:"type"`
	Attrs    map[string]any  `toml:"attrs" yaml:"attrs"`
	Children []fileWidgetUse `toml:"children" yaml:"children"`
}

type fileGeometry struct {
	Anchor string `toml:"anchor" yaml:"anchor"`
	Pos    string `toml:"pos" yaml:"pos"`
	Size   string `toml:"size" yaml:"size"`
}

type fileWindow struct {
	Geometry  fileGeometry  `toml:"geometry" yaml:"geometry"`
	Stacking  string        `toml:"stacking" yaml:"stacking"`
	Screen    *int          `toml:"screen" yaml:"screen"`
	Focusable bool          `toml:"focusable" yaml:"focusable"`
	Widget    fileWidgetUse `toml:"widget" yaml:"widget"`
}

// Load reads the configuration from the first config file found in the
// standard config directory. If no file exists, returns Empty().
func Load() (*Config, error) {
	return ReadFromFileOrEmpty(FindConfigFile(DefaultConfigDir()))
}

// ReadFromFile reads and validates configuration from path. Every failure,
// including a missing file, is a *ParseError.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	cfg, err := ReadFrom(f, FormatForPath(path))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// ReadFromFileOrEmpty is ReadFromFile with a missing file read as Empty().
// Used at startup, where running without a config is allowed.
func ReadFromFileOrEmpty(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	return cfg, err
}

// ReadFrom decodes and validates a configuration document.
func ReadFrom(r io.Reader, format Format) (*Config, error) {
	var fc fileConfig
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: err}
		}
	default:
		if _, err := toml.NewDecoder(r).Decode(&fc); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	cfg, err := fc.build()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Err: err}
	}
	return cfg, nil
}

// build converts the decoded file into a Config, parsing every typed field.
func (fc fileConfig) build() (*Config, error) {
	cfg := Empty()

	for name, v := range fc.Vars {
		cfg.Vars[value.VarName(name)] = VarDefinition{
			Name:    value.VarName(name),
			Initial: initialValue(v.Initial),
		}
	}

	for name, v := range fc.Poll {
		cfg.PollVars[value.VarName(name)] = PollVarDefinition{
			Name:     value.VarName(name),
			Command:  v.Command,
			Interval: time.Duration(v.Interval),
			Initial:  initialValue(v.Initial),
		}
	}

	for name, v := range fc.Listen {
		cfg.ListenVars[value.VarName(name)] = ListenVarDefinition{
			Name:    value.VarName(name),
			Command: v.Command,
			Initial: initialValue(v.Initial),
		}
	}

	for name, v := range fc.Sys {
		cfg.SysVars[value.VarName(name)] = SysVarDefinition{
			Name:     value.VarName(name),
			Metric:   SysMetric(strings.ToLower(v.Metric)),
			Interval: v.Interval.Or(DefaultSysInterval),
		}
	}

	for name, w := range fc.Widgets {
		cfg.Widgets[name] = WidgetDefinition{
			Name:   name,
			Params: w.Params,
			Body:   w.Body.build(),
		}
	}

	for name, w := range fc.Windows {
		def, err := w.build(value.WindowName(name))
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", name, err)
		}
		cfg.Windows[def.Name] = def
	}

	return cfg, nil
}

func (fw fileWindow) build(name value.WindowName) (WindowDefinition, error) {
	def := WindowDefinition{
		Name:      name,
		Geometry:  DefaultGeometry(),
		Screen:    fw.Screen,
		Focusable: fw.Focusable,
		Widget:    fw.Widget.build(),
	}

	stacking, err := ParseStacking(fw.Stacking)
	if err != nil {
		return def, err
	}
	def.Stacking = stacking

	if fw.Geometry.Anchor != "" {
		if def.Geometry.Anchor, err = ParseAnchorPoint(fw.Geometry.Anchor); err != nil {
			return def, err
		}
	}
	if fw.Geometry.Pos != "" {
		if def.Geometry.Offset, err = value.ParseCoords(fw.Geometry.Pos); err != nil {
			return def, err
		}
	}
	if fw.Geometry.Size != "" {
		if def.Geometry.Size, err = value.ParseCoords(fw.Geometry.Size); err != nil {
			return def, err
		}
	}
	return def, nil
}

func (fu fileWidgetUse) build() WidgetUse {
	use := WidgetUse{Type: fu.Type}
	if len(fu.Attrs) > 0 {
		use.Attrs = make(map[string]string, len(fu.Attrs))
		for k, v := range fu.Attrs {
			use.Attrs[k] = value.FromAny(v).String()
		}
	}
	for _, child := range fu.Children {
		use.Children = append(use.Children, child.build())
	}
	return use
}

// initialValue converts a decoded initial value. Strings go through
// value.Parse so "12px" in a config file means the same as on the command
// line.
func initialValue(raw any) value.Value {
	if s, ok := raw.(string); ok {
		return value.Parse(s)
	}
	return value.FromAny(raw)
}
