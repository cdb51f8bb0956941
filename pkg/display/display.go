// Package display is the boundary to the window system. The daemon only
// uses the verbs on Backend; how a tree becomes pixels is the backend's
// business.
package display

import (
	"fmt"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/widgets"
)

// Handle identifies one native window owned by a backend.
type Handle uint64

// Monitor is the area windows are placed in.
type Monitor struct {
	X, Y          int
	Width, Height int
}

// Rect is a resolved window rectangle.
type Rect struct {
	X, Y          int
	Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Placement is everything a backend needs to show a tree.
type Placement struct {
	Rect      Rect
	Stacking  config.Stacking
	Focusable bool
	Screen    int
}

// Backend is the native window system.
type Backend interface {
	// Open shows tree and returns a handle for later calls.
	Open(tree *widgets.Tree, p Placement) (Handle, error)
	// Close destroys the window behind h.
	Close(h Handle) error
	// Resize changes the size of an open window.
	Resize(h Handle, width, height int) error
	// SetStacking moves an open window above or below other windows.
	SetStacking(h Handle, s config.Stacking) error
	// LoadStylesheet replaces the stylesheet used for every window.
	LoadStylesheet(css string) error
	// Monitor reports the geometry of a screen. Unknown screens fall back
	// to the primary one.
	Monitor(screen int) Monitor
}

// Place resolves a window geometry against a monitor. Percent sizes and
// offsets are relative to the monitor; the offset is added after the
// anchor is applied.
func Place(g config.Geometry, m Monitor) Rect {
	w := g.Size.X.Resolve(m.Width)
	h := g.Size.Y.Resolve(m.Height)
	return Rect{
		X:      m.X + align(g.Anchor.X, w, m.Width) + g.Offset.X.Resolve(m.Width),
		Y:      m.Y + align(g.Anchor.Y, h, m.Height) + g.Offset.Y.Resolve(m.Height),
		Width:  w,
		Height: h,
	}
}

func align(a config.AnchorAlignment, inner, outer int) int {
	switch a {
	case config.AlignCenter:
		return outer/2 - inner/2
	case config.AlignEnd:
		return outer - inner
	default:
		return 0
	}
}

// PlacementFor combines a window definition with a monitor from b.
func PlacementFor(b Backend, def config.WindowDefinition) Placement {
	screen := 0
	if def.Screen != nil {
		screen = *def.Screen
	}
	return Placement{
		Rect:      Place(def.Geometry, b.Monitor(screen)),
		Stacking:  def.Stacking,
		Focusable: def.Focusable,
		Screen:    screen,
	}
}
