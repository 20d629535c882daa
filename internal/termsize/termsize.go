// Package termsize reports the size of the terminal the CLI renders into.
package termsize

import (
	"os"
	"strconv"
)

// DefaultColumns is used when neither the terminal nor COLUMNS report a width
const DefaultColumns = 100

// Columns returns the width in cells of the terminal attached to f. It falls
// back to the COLUMNS environment variable, then to DefaultColumns.
func Columns(f *os.File) int {
	if cols, err := columns(f); err == nil && cols > 0 {
		return cols
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return DefaultColumns
}

// PixelWidth converts a terminal width into the pixel width the grid
// breakpoints are expressed in, given the pixels one cell stands for
func PixelWidth(cols, cellWidthPx int) int {
	if cellWidthPx <= 0 {
		cellWidthPx = 8
	}
	return cols * cellWidthPx
}
