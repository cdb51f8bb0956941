package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

const sampleTOML = `
[vars.greeting]
initial = "hello"

[poll.volume]
command = "pamixer --get-volume"
interval = "1s"
initial = "0"

[listen.workspace]
command = "xprop -spy -root _NET_CURRENT_DESKTOP"

[sys.ram]
metric = "ram"

[widgets.labeled]
params = ["text"]
[widgets.labeled.body]
type = "box"
children = [{ type = "label", attrs = { text = "{{text}}" } }]

[windows.bar]
stacking = "background"
screen = 1
[windows.bar.geometry]
anchor = "top center"
pos = "0x10px"
size = "100%x30px"
[windows.bar.widget]
type = "labeled"
attrs = { text = "vol {{volume}}" }
`

const sampleYAML = `
vars:
  greeting:
    initial: hello
windows:
  bar:
    geometry:
      anchor: bottom right
      size: 200x30
    widget:
      type: label
      attrs:
        text: "{{greeting}}"
`

func TestReadFromTOML(t *testing.T) {
	cfg, err := ReadFrom(strings.NewReader(sampleTOML), FormatTOML)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	bar, ok := cfg.Window("bar")
	if !ok {
		t.Fatal("window bar missing")
	}
	if bar.Stacking != StackingBackground {
		t.Errorf("Stacking = %s, want background", bar.Stacking)
	}
	if bar.Screen == nil || *bar.Screen != 1 {
		t.Errorf("Screen = %v, want 1", bar.Screen)
	}
	if got := bar.Geometry.Anchor.String(); got != "top center" {
		t.Errorf("Anchor = %q, want %q", got, "top center")
	}
	if got := bar.Geometry.Size.String(); got != "100%x30px" {
		t.Errorf("Size = %q, want %q", got, "100%x30px")
	}
	if bar.Widget.Attrs["text"] != "vol {{volume}}" {
		t.Errorf("widget text = %q", bar.Widget.Attrs["text"])
	}

	poll := cfg.PollVars["volume"]
	if poll.Interval != time.Second {
		t.Errorf("poll interval = %v, want 1s", poll.Interval)
	}
	if n, ok := poll.Initial.AsNumber(); !ok || n.Value != 0 {
		t.Errorf("poll initial = %v, want number 0", poll.Initial)
	}
	if cfg.SysVars["ram"].Interval != 2*time.Second {
		t.Errorf("sys interval default = %v, want 2s", cfg.SysVars["ram"].Interval)
	}
	if got := cfg.VarInitial("greeting").String(); got != "hello" {
		t.Errorf("VarInitial(greeting) = %q, want hello", got)
	}
	if cfg.VarInitial("undeclared").IsSet() {
		t.Error("VarInitial of an undeclared var should be unset")
	}
	if !cfg.HasProducer("volume") || !cfg.HasProducer("workspace") || !cfg.HasProducer("ram") {
		t.Error("poll, listen and sys vars should have producers")
	}
	if cfg.HasProducer("greeting") {
		t.Error("static var should not have a producer")
	}
}

func TestReadFromYAML(t *testing.T) {
	cfg, err := ReadFrom(strings.NewReader(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	bar, ok := cfg.Window("bar")
	if !ok {
		t.Fatal("window bar missing")
	}
	if got := bar.Geometry.Anchor.String(); got != "bottom right" {
		t.Errorf("Anchor = %q, want %q", got, "bottom right")
	}
	if bar.Stacking != StackingForeground {
		t.Errorf("default Stacking = %s, want foreground", bar.Stacking)
	}
}

func TestReadFromFileMissingIsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, err := ReadFromFile(path)
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Errorf("ParseError.Path = %q, want %q", pe.Path, path)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap fs.ErrNotExist: %v", err)
	}
}

func TestReadFromFileOrEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ReadFromFileOrEmpty(filepath.Join(dir, "nope.toml"))
	if err != nil {
		t.Fatalf("ReadFromFileOrEmpty: %v", err)
	}
	if len(cfg.Windows) != 0 {
		t.Errorf("expected no windows, got %d", len(cfg.Windows))
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[windows.bar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFromFileOrEmpty(bad); err == nil {
		t.Error("a malformed file must still fail")
	}
}

func TestReadFromFileReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgetd.toml")
	if err := os.WriteFile(path, []byte("[windows.bar\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFromFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Errorf("ParseError.Path = %q, want %q", pe.Path, path)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown widget",
			doc:  "[windows.a.widget]\ntype = \"nope\"\n",
			want: `unknown widget "nope"`,
		},
		{
			name: "recursive template",
			doc:  "[widgets.loop.body]\ntype = \"loop\"\n[windows.a.widget]\ntype = \"loop\"\n",
			want: "recursive",
		},
		{
			name: "duplicate variable",
			doc:  "[vars.x]\ninitial = 1\n[listen.x]\ncommand = \"true\"\n",
			want: `variable "x" defined as both`,
		},
		{
			name: "poll without interval",
			doc:  "[poll.x]\ncommand = \"date\"\n",
			want: "interval must be positive",
		},
		{
			name: "negative interval",
			doc:  "[poll.x]\ncommand = \"date\"\ninterval = \"-1s\"\n",
			want: "is negative",
		},
		{
			name: "unreadable interval",
			doc:  "[sys.x]\nmetric = \"cpu\"\ninterval = \"soon\"\n",
			want: "want a duration",
		},
		{
			name: "window without widget",
			doc:  "[windows.a]\nfocusable = true\n",
			want: "missing widget",
		},
		{
			name: "bad sys metric",
			doc:  "[sys.x]\nmetric = \"gpu\"\n",
			want: "unknown metric",
		},
		{
			name: "bad anchor",
			doc:  "[windows.a.geometry]\nanchor = \"top bottom\"\n[windows.a.widget]\ntype = \"label\"\n",
			want: "vertical position given twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrom(strings.NewReader(tt.doc), FormatTOML)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestIntervalForms(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		doc    string
		want   time.Duration
	}{
		{"toml duration", FormatTOML, "[poll.x]\ncommand = \"date\"\ninterval = \"500ms\"\n", 500 * time.Millisecond},
		{"toml integer seconds", FormatTOML, "[poll.x]\ncommand = \"date\"\ninterval = 5\n", 5 * time.Second},
		{"toml float seconds", FormatTOML, "[poll.x]\ncommand = \"date\"\ninterval = 0.5\n", 500 * time.Millisecond},
		{"toml quoted seconds", FormatTOML, "[poll.x]\ncommand = \"date\"\ninterval = \"3\"\n", 3 * time.Second},
		{"yaml seconds", FormatYAML, "poll:\n  x:\n    command: date\n    interval: 2\n", 2 * time.Second},
		{"yaml duration", FormatYAML, "poll:\n  x:\n    command: date\n    interval: 1m\n", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ReadFrom(strings.NewReader(tt.doc), tt.format)
			if err != nil {
				t.Fatalf("ReadFrom: %v", err)
			}
			if got := cfg.PollVars["x"].Interval; got != tt.want {
				t.Errorf("Interval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntervalOr(t *testing.T) {
	var unset Interval
	if got := unset.Or(DefaultSysInterval); got != DefaultSysInterval {
		t.Errorf("unset.Or = %v, want %v", got, DefaultSysInterval)
	}
	if got := Interval(time.Second).Or(DefaultSysInterval); got != time.Second {
		t.Errorf("Or = %v, want 1s", got)
	}
}

func TestParseAnchorPoint(t *testing.T) {
	tests := []struct {
		in   string
		want AnchorPoint
	}{
		{"top left", AnchorPoint{X: AlignStart, Y: AlignStart}},
		{"bottom right", AnchorPoint{X: AlignEnd, Y: AlignEnd}},
		{"right top", AnchorPoint{X: AlignEnd, Y: AlignStart}},
		{"center", AnchorPoint{X: AlignCenter, Y: AlignCenter}},
		{"bottom", AnchorPoint{X: AlignCenter, Y: AlignEnd}},
	}
	for _, tt := range tests {
		got, err := ParseAnchorPoint(tt.in)
		if err != nil {
			t.Errorf("ParseAnchorPoint(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAnchorPoint(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "left right", "up", "top left center"} {
		if _, err := ParseAnchorPoint(bad); err == nil {
			t.Errorf("ParseAnchorPoint(%q) should fail", bad)
		}
	}
}

func TestGeometryOverride(t *testing.T) {
	g := DefaultGeometry()
	pos := value.Coords{X: value.NumWithUnit{Value: 5}, Y: value.NumWithUnit{Value: 6}}

	got := g.Override(nil, &pos, nil)
	if got.Offset != pos {
		t.Errorf("Offset = %v, want %v", got.Offset, pos)
	}
	if got.Size != g.Size || got.Anchor != g.Anchor {
		t.Error("fields without an override should be unchanged")
	}
	if g.Offset == pos {
		t.Error("Override must not modify the receiver")
	}
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, "widgetd.yaml"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p := ResolvePaths(dir)
	if p.ConfigFile != filepath.Join(dir, "widgetd.yaml") {
		t.Errorf("ConfigFile = %q, want the existing yaml file", p.ConfigFile)
	}
	if p.StyleFile != filepath.Join(dir, "widgetd.css") {
		t.Errorf("StyleFile = %q, want default css path", p.StyleFile)
	}
	if filepath.Dir(p.SocketPath) != dir {
		t.Errorf("SocketPath %q should live in XDG_RUNTIME_DIR", p.SocketPath)
	}
	if ResolvePaths(dir).SocketPath != p.SocketPath {
		t.Error("socket path should be stable for the same config dir")
	}
}
