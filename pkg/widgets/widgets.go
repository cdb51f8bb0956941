// Package widgets expands window definitions into widget trees. A tree is
// built against the variable values current at open time and records which
// variables it references, so the daemon knows what producers the window
// needs.
package widgets

// Colors used when a backend draws trees without a stylesheet.
const (
	// ColorBorderDefault is the muted gray used for window borders.
	ColorBorderDefault = "#6B7280"

	// ColorBorderFocus is the purple used for focusable windows.
	ColorBorderFocus = "#7C3AED"

	// ColorAccent is a softer purple for titles and highlights.
	ColorAccent = "#A78BFA"

	// ColorDim is used for unset values.
	ColorDim = "#9CA3AF"

	// ColorError is used for error message text.
	ColorError = "#EF4444"
)
