package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit is the unit attached to a number.
type Unit string

const (
	UnitNone    Unit = ""
	UnitPixels  Unit = "px"
	UnitPercent Unit = "%"
)

// NumWithUnit is a number optionally measured in pixels or percent.
type NumWithUnit struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit,omitempty"`
}

// ParseNumWithUnit parses "12", "12.5", "12px" or "40%".
func ParseNumWithUnit(s string) (NumWithUnit, error) {
	s = strings.TrimSpace(s)
	unit := UnitNone
	switch {
	case strings.HasSuffix(s, "px"):
		unit = UnitPixels
		s = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		unit = UnitPercent
		s = strings.TrimSuffix(s, "%")
	}
	if s == "" {
		return NumWithUnit{}, fmt.Errorf("empty number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return NumWithUnit{}, fmt.Errorf("invalid number %q", s)
	}
	return NumWithUnit{Value: f, Unit: unit}, nil
}

// String renders the number followed by its unit.
func (n NumWithUnit) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64) + string(n.Unit)
}

// Resolve converts n to pixels relative to total. Unitless numbers are
// treated as pixels.
func (n NumWithUnit) Resolve(total int) int {
	if n.Unit == UnitPercent {
		return int(math.Round(float64(total) * n.Value / 100))
	}
	return int(math.Round(n.Value))
}

// MarshalText implements encoding.TextMarshaler.
func (n NumWithUnit) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NumWithUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseNumWithUnit(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Coords is an x/y pair, used for window position and size.
type Coords struct {
	X NumWithUnit `json:"x"`
	Y NumWithUnit `json:"y"`
}

// ParseCoords parses "WIDTHxHEIGHT" style pairs such as "200x30" or
// "50%x10px".
func ParseCoords(s string) (Coords, error) {
	x, y, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return Coords{}, fmt.Errorf("invalid coords %q: expected <x>x<y>", s)
	}
	nx, err := ParseNumWithUnit(x)
	if err != nil {
		return Coords{}, fmt.Errorf("invalid coords %q: %w", s, err)
	}
	ny, err := ParseNumWithUnit(y)
	if err != nil {
		return Coords{}, fmt.Errorf("invalid coords %q: %w", s, err)
	}
	return Coords{X: nx, Y: ny}, nil
}

// String renders c in the form accepted by ParseCoords.
func (c Coords) String() string { return c.X.String() + "x" + c.Y.String() }

// MarshalText implements encoding.TextMarshaler.
func (c Coords) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coords) UnmarshalText(text []byte) error {
	parsed, err := ParseCoords(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
