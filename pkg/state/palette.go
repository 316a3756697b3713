package state

import "slices"

// DefaultColor is the background drawn behind transparent cells.
const DefaultColor = "#313131"

var defaultPalette = []string{
	"#000000",
	"#ff0000",
	"#e91e63",
	"#9c27b0",
	"#673ab7",
	"#3f51b5",
	"#2196f3",
	"#03a9f4",
	"#00bcd4",
	"#009688",
	"#4caf50",
	"#8bc34a",
	"#cddc39",
	"#9ee07a",
	"#ffeb3b",
	"#ffc107",
	"#ff9800",
	"#ffcdd2",
	"#ff5722",
	"#795548",
	"#9e9e9e",
	"#607d8b",
	"#303f46",
	"#ffffff",
	"#383535",
	"#383534",
	"#383533",
	"#383532",
	"#383531",
	"#383530",
}

// DefaultPalette returns a fresh copy of the palette new projects start with.
func DefaultPalette() []string {
	return slices.Clone(defaultPalette)
}
