package display

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Default terminal monitor size in cells when the output is not a terminal.
const (
	defaultCols = 120
	defaultRows = 40
)

// TerminalOptions configures a Terminal backend.
type TerminalOptions struct {
	// Out receives rendered windows. Default: os.Stdout.
	Out io.Writer
	// Profile forces a color profile. Zero means detect from the
	// environment.
	Profile *termenv.Profile
	// Cols and Rows override the detected monitor size.
	Cols, Rows int
}

// Terminal is a headless backend that draws every window it opens as a
// bordered box on a writer. Monitor units are terminal cells.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	monitor  Monitor
	next     Handle
	windows  map[Handle]*termWindow
	css      string
}

type termWindow struct {
	tree      *widgets.Tree
	placement Placement
}

// NewTerminal creates a Terminal backend.
func NewTerminal(opts TerminalOptions) *Terminal {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 || rows <= 0 {
		cols, rows = detectSize(out)
	}

	var ropts []termenv.OutputOption
	if opts.Profile != nil {
		ropts = append(ropts, termenv.WithProfile(*opts.Profile))
	} else {
		ropts = append(ropts, termenv.WithProfile(termenv.EnvColorProfile()))
	}

	return &Terminal{
		out:      out,
		renderer: lipgloss.NewRenderer(out, ropts...),
		monitor:  Monitor{Width: cols, Height: rows},
		windows:  make(map[Handle]*termWindow),
	}
}

// detectSize returns the terminal size when out is a terminal.
func detectSize(out io.Writer) (int, int) {
	if f, ok := out.(*os.File); ok && term.IsTerminal(f.Fd()) {
		if w, h, err := term.GetSize(f.Fd()); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultCols, defaultRows
}

// Open draws the window and returns its handle.
func (t *Terminal) Open(tree *widgets.Tree, p Placement) (Handle, error) {
	if tree == nil || tree.Root == nil {
		return 0, fmt.Errorf("terminal: empty widget tree")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	t.windows[h] = &termWindow{tree: tree, placement: p}

	_, err := fmt.Fprintln(t.out, t.renderLocked(t.windows[h]))
	return h, err
}

// Close forgets the window.
func (t *Terminal) Close(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[h]
	if !ok {
		return fmt.Errorf("terminal: unknown window handle %d", h)
	}
	delete(t.windows, h)
	_, err := fmt.Fprintf(t.out, "[%s closed]\n", w.tree.Window)
	return err
}

// Resize changes the size used for the next render.
func (t *Terminal) Resize(h Handle, width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[h]
	if !ok {
		return fmt.Errorf("terminal: unknown window handle %d", h)
	}
	w.placement.Rect.Width = width
	w.placement.Rect.Height = height
	return nil
}

// SetStacking records the stacking for the window.
func (t *Terminal) SetStacking(h Handle, s config.Stacking) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[h]
	if !ok {
		return fmt.Errorf("terminal: unknown window handle %d", h)
	}
	w.placement.Stacking = s
	return nil
}

// LoadStylesheet stores the stylesheet. The terminal renderer draws with
// its own palette, so the text is only kept for inspection.
func (t *Terminal) LoadStylesheet(css string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.css = css
	return nil
}

// Stylesheet returns the last stylesheet loaded.
func (t *Terminal) Stylesheet() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.css
}

// Monitor returns the terminal size; every screen maps to it.
func (t *Terminal) Monitor(int) Monitor { return t.monitor }

// Render returns the current drawing of an open window.
func (t *Terminal) Render(h Handle) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[h]
	if !ok {
		return "", false
	}
	return t.renderLocked(w), true
}

func (t *Terminal) renderLocked(w *termWindow) string {
	border := widgets.ColorBorderDefault
	if w.placement.Focusable {
		border = widgets.ColorBorderFocus
	}

	// Two columns go to the border, two to padding.
	inner := w.placement.Rect.Width - 4
	if inner < 1 {
		inner = 1
	}

	title := t.renderer.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(widgets.ColorAccent)).
		Render(ansi.Truncate(string(w.tree.Window), inner, "…"))

	body := t.renderNode(w.tree.Root, inner)

	return t.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(0, 1).
		Width(inner + 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func (t *Terminal) renderNode(n *widgets.Node, width int) string {
	switch n.Type {
	case "box":
		parts := make([]string, 0, len(n.Children))
		horizontal := strings.HasPrefix(n.Attr("orientation"), "h")
		childWidth := width
		if horizontal && len(n.Children) > 0 {
			childWidth = width / len(n.Children)
		}
		for _, c := range n.Children {
			parts = append(parts, t.renderNode(c, childWidth))
		}
		if horizontal {
			return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	case "button":
		return ansi.Truncate("["+n.Attr("text")+"]", width, "…")
	case "image":
		return ansi.Truncate("<"+n.Attr("path")+">", width, "…")
	case "progress", "scale":
		return bar(n.Attr("value"), width)
	default:
		text := n.Attr("text")
		if text == "" {
			return t.renderer.NewStyle().Foreground(lipgloss.Color(widgets.ColorDim)).Render("-")
		}
		return ansi.Truncate(text, width, "…")
	}
}

// bar draws a 0-100 value as a horizontal gauge.
func bar(raw string, width int) string {
	pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
	if err != nil {
		pct = 0
	}
	pct = min(max(pct, 0), 100)
	if width < 1 {
		return ""
	}
	filled := int(pct / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
