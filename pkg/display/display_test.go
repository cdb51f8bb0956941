package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

func mustCoords(t *testing.T, s string) value.Coords {
	t.Helper()
	c, err := value.ParseCoords(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPlace(t *testing.T) {
	m := Monitor{X: 0, Y: 0, Width: 1920, Height: 1080}

	tests := []struct {
		name   string
		anchor string
		pos    string
		size   string
		want   Rect
	}{
		{"top left bar", "top left", "0x0", "100%x30px", Rect{0, 0, 1920, 30}},
		{"bottom right with offset", "bottom right", "-10x-10", "200x100", Rect{1710, 970, 200, 100}},
		{"centered", "center", "0x0", "50%x50%", Rect{480, 270, 960, 540}},
		{"top center", "top center", "0x5", "400x30", Rect{760, 5, 400, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor, err := config.ParseAnchorPoint(tt.anchor)
			if err != nil {
				t.Fatal(err)
			}
			g := config.Geometry{Anchor: anchor, Offset: mustCoords(t, tt.pos), Size: mustCoords(t, tt.size)}
			if got := Place(g, m); got != tt.want {
				t.Errorf("Place = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPlaceRespectsMonitorOrigin(t *testing.T) {
	g := config.Geometry{Size: mustCoords(t, "10x10")}
	got := Place(g, Monitor{X: 1920, Y: 0, Width: 1280, Height: 1024})
	if got.X != 1920 {
		t.Errorf("X = %d, want window on second monitor at 1920", got.X)
	}
}

func testTree() *widgets.Tree {
	return &widgets.Tree{
		Window: "bar",
		Root: &widgets.Node{
			Type: "box",
			Children: []*widgets.Node{
				{Type: "label", Attrs: map[string]string{"text": "volume 40"}},
				{Type: "progress", Attrs: map[string]string{"value": "50"}},
			},
		},
	}
}

func TestTerminalOpenRendersWindow(t *testing.T) {
	var out bytes.Buffer
	ascii := termenv.Ascii
	term := NewTerminal(TerminalOptions{Out: &out, Profile: &ascii, Cols: 80, Rows: 24})

	h, err := term.Open(testTree(), Placement{Rect: Rect{Width: 24, Height: 4}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	drawn := out.String()
	for _, want := range []string{"bar", "volume 40", "██████████░░░░░░░░░░"} {
		if !strings.Contains(drawn, want) {
			t.Errorf("render missing %q:\n%s", want, drawn)
		}
	}

	if _, ok := term.Render(h); !ok {
		t.Error("Render should find the open window")
	}
	if err := term.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(out.String(), "[bar closed]") {
		t.Error("Close should announce the closed window")
	}
	if err := term.Close(h); err == nil {
		t.Error("closing twice should fail")
	}
}

func TestTerminalMonitorOverride(t *testing.T) {
	term := NewTerminal(TerminalOptions{Out: &bytes.Buffer{}, Cols: 100, Rows: 30})
	if m := term.Monitor(3); m.Width != 100 || m.Height != 30 {
		t.Errorf("Monitor = %+v, want 100x30", m)
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		raw   string
		width int
		want  string
	}{
		{"0", 4, "░░░░"},
		{"100", 4, "████"},
		{"50%", 4, "██░░"},
		{"250", 2, "██"},
		{"junk", 2, "░░"},
	}
	for _, tt := range tests {
		if got := bar(tt.raw, tt.width); got != tt.want {
			t.Errorf("bar(%q, %d) = %q, want %q", tt.raw, tt.width, got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	h, err := r.Open(testTree(), Placement{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	boom := errors.New("boom")
	r.FailOpen("bar", boom)
	if _, err := r.Open(testTree(), Placement{}); !errors.Is(err, boom) {
		t.Fatalf("Open with failure = %v, want boom", err)
	}

	open, counts := r.OpenWindows()
	if len(open) != 1 || counts["bar"] != 1 {
		t.Fatalf("open = %v counts = %v, want one bar", open, counts)
	}
	if err := r.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var verbs []string
	for _, op := range r.Ops() {
		verbs = append(verbs, op.Verb)
	}
	if got := strings.Join(verbs, ","); got != "open,open-failed,close" {
		t.Errorf("ops = %s", got)
	}
}
