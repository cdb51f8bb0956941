package config

import (
	"fmt"
	"strings"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// AnchorAlignment positions a window along one axis of its monitor.
type AnchorAlignment int

const (
	AlignStart AnchorAlignment = iota
	AlignCenter
	AlignEnd
)

// AnchorPoint is the monitor point a window's offset is measured from.
type AnchorPoint struct {
	X AnchorAlignment
	Y AnchorAlignment
}

// String renders the anchor as "<y> <x>", e.g. "top right".
func (a AnchorPoint) String() string {
	y := [...]string{"top", "center", "bottom"}[a.Y]
	x := [...]string{"left", "center", "right"}[a.X]
	return y + " " + x
}

// ParseAnchorPoint parses anchors such as "top left", "bottom center",
// "right" or "center". An axis that is not named is centered.
func ParseAnchorPoint(s string) (AnchorPoint, error) {
	a := AnchorPoint{X: AlignCenter, Y: AlignCenter}
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 || len(words) > 2 {
		return a, fmt.Errorf("invalid anchor %q", s)
	}
	var sawX, sawY bool
	for _, w := range words {
		switch w {
		case "top", "bottom":
			if sawY {
				return a, fmt.Errorf("invalid anchor %q: vertical position given twice", s)
			}
			sawY = true
			a.Y = AlignStart
			if w == "bottom" {
				a.Y = AlignEnd
			}
		case "left", "right":
			if sawX {
				return a, fmt.Errorf("invalid anchor %q: horizontal position given twice", s)
			}
			sawX = true
			a.X = AlignStart
			if w == "right" {
				a.X = AlignEnd
			}
		case "center":
		default:
			return a, fmt.Errorf("invalid anchor %q: unknown word %q", s, w)
		}
	}
	return a, nil
}

// Geometry is a window's placement relative to its anchor point.
type Geometry struct {
	Anchor AnchorPoint
	Offset value.Coords
	Size   value.Coords
}

// Override returns a copy of g with any non-nil override applied.
func (g Geometry) Override(anchor *AnchorPoint, pos, size *value.Coords) Geometry {
	if anchor != nil {
		g.Anchor = *anchor
	}
	if pos != nil {
		g.Offset = *pos
	}
	if size != nil {
		g.Size = *size
	}
	return g
}

// DefaultGeometry anchors at the top left with a 100%x10% bar size.
func DefaultGeometry() Geometry {
	return Geometry{
		Anchor: AnchorPoint{X: AlignStart, Y: AlignStart},
		Size: value.Coords{
			X: value.NumWithUnit{Value: 100, Unit: value.UnitPercent},
			Y: value.NumWithUnit{Value: 10, Unit: value.UnitPercent},
		},
	}
}
