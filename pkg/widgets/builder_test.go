package widgets

import (
	"errors"
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.ReadFrom(strings.NewReader(`
[vars.greeting]
initial = "hello"

[poll.volume]
command = "echo 10"
interval = "1s"
initial = "0"

[widgets.metric]
params = ["label", "amount"]
[widgets.metric.body]
type = "box"
attrs = { class = "metric" }
children = [
  { type = "label", attrs = { text = "{{label}}" } },
  { type = "progress", attrs = { value = "{{amount}}" } },
]

[windows.bar.widget]
type = "box"
children = [
  { type = "label", attrs = { text = "{{greeting}} from {{window_name}}" } },
  { type = "metric", attrs = { label = "vol", amount = "{{volume}}" } },
]
`), config.FormatTOML)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestBuildSubstitutesAndRecordsReferences(t *testing.T) {
	cfg := testConfig(t)
	def, _ := cfg.Window("bar")

	tree, err := NewBuilder().Build(cfg, Snapshot{"volume": value.Number(42, value.UnitPercent)}, "bar", def)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(tree.Vars) != 2 || tree.Vars[0] != "greeting" || tree.Vars[1] != "volume" {
		t.Fatalf("Vars = %v, want [greeting volume]", tree.Vars)
	}
	if !tree.References("volume") || tree.References("window_name") {
		t.Error("References should include variables and exclude locals")
	}

	label := tree.Root.Children[0]
	if got := label.Attr("text"); got != "hello from bar" {
		t.Errorf("label text = %q, want %q", got, "hello from bar")
	}

	metric := tree.Root.Children[1]
	if metric.Type != "box" || len(metric.Classes) != 1 || metric.Classes[0] != "metric" {
		t.Errorf("template root = %+v, want box.metric", metric)
	}
	if got := metric.Children[1].Attr("value"); got != "42%" {
		t.Errorf("progress value = %q, want 42%%", got)
	}
}

func TestBuildRootCarriesWindowClass(t *testing.T) {
	cfg := testConfig(t)
	def, _ := cfg.Window("bar")

	tree, err := NewBuilder().Build(cfg, nil, "bar", def)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Root.Classes) == 0 || tree.Root.Classes[0] != "bar" {
		t.Errorf("root classes = %v, want window name first", tree.Root.Classes)
	}
}

func TestBuildFallsBackToInitialValue(t *testing.T) {
	cfg := testConfig(t)
	def, _ := cfg.Window("bar")

	tree, err := NewBuilder().Build(cfg, Snapshot{"volume": {}}, "bar", def)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := tree.Root.Children[1].Children[1].Attr("value"); got != "0" {
		t.Errorf("unset volume should fall back to initial 0, got %q", got)
	}
}

func TestBuildMissingTemplateParam(t *testing.T) {
	cfg := testConfig(t)
	def := config.WindowDefinition{
		Name:   "broken",
		Widget: config.WidgetUse{Type: "metric", Attrs: map[string]string{"label": "x"}},
	}

	_, err := NewBuilder().Build(cfg, nil, "broken", def)
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %v", err)
	}
	if be.Window != "broken" || !strings.Contains(err.Error(), `missing required attribute "amount"`) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBuildUnknownWidget(t *testing.T) {
	cfg := testConfig(t)
	def := config.WindowDefinition{Name: "x", Widget: config.WidgetUse{Type: "marquee"}}
	if _, err := NewBuilder().Build(cfg, nil, "x", def); err == nil {
		t.Fatal("expected unknown widget error")
	}
}

func TestTreeString(t *testing.T) {
	cfg := testConfig(t)
	def, _ := cfg.Window("bar")
	tree, err := NewBuilder().Build(cfg, nil, "bar", def)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "box\n" +
		"  label text=\"hello from bar\"\n" +
		"  box class=\"metric\"\n" +
		"    label text=\"vol\"\n" +
		"    progress value=\"0\"\n"
	if got := tree.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}
