// Package inspector implements the interactive command loop, hex dumps,
// and graph rendering built on top of sqlitefmt's decoders.
package inspector

import "github.com/fatih/color"

// Theme assigns a terminal color to each region a hex dump can highlight.
// NoColor disables all of them (e.g. when stdout is not a terminal or the
// user asked for plain output), falling back to color.New's own
// isatty detection otherwise.
type Theme struct {
	Header         *color.Color
	PointerArray   *color.Color
	CellContent    *color.Color
	Freeblock      *color.Color
	UnallocatedGap *color.Color
	NoColor        bool
}

// DefaultTheme returns the inspector's standard region coloring.
func DefaultTheme() Theme {
	return Theme{
		Header:         color.New(color.FgCyan),
		PointerArray:   color.New(color.FgYellow),
		CellContent:    color.New(color.FgGreen),
		Freeblock:      color.New(color.FgRed, color.Bold),
		UnallocatedGap: color.New(color.FgMagenta),
	}
}

func (t Theme) paint(c *color.Color, s string) string {
	if t.NoColor || c == nil {
		return s
	}
	return c.Sprint(s)
}
