package schedule

import (
	"sort"

	"github.com/glefebvre/housou/internal/models"
)

// Breakpoint maps a minimum viewport width to a column count
type Breakpoint struct {
	MinWidth int
	Columns  int
}

// DefaultBreakpoints are 4 columns from 1280px, 3 from 1024px, otherwise 2
var DefaultBreakpoints = []Breakpoint{
	{MinWidth: 1280, Columns: 4},
	{MinWidth: 1024, Columns: 3},
	{MinWidth: 0, Columns: 2},
}

// ColumnCount returns the columns of the widest breakpoint that width reaches.
// It never returns less than 1.
func ColumnCount(width int, breakpoints []Breakpoint) int {
	if len(breakpoints) == 0 {
		breakpoints = DefaultBreakpoints
	}

	sorted := make([]Breakpoint, len(breakpoints))
	copy(sorted, breakpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinWidth > sorted[j].MinWidth
	})

	for _, bp := range sorted {
		if width >= bp.MinWidth {
			return max(bp.Columns, 1)
		}
	}
	return max(sorted[len(sorted)-1].Columns, 1)
}

// DistributeColumns deals items round-robin into n columns: item i goes to column i mod n
func DistributeColumns(items []models.AnimeItem, n int) [][]models.AnimeItem {
	if n < 1 {
		n = 1
	}

	columns := make([][]models.AnimeItem, n)
	for i := range columns {
		columns[i] = make([]models.AnimeItem, 0, (len(items)+n-1)/n)
	}
	for i, item := range items {
		columns[i%n] = append(columns[i%n], item)
	}
	return columns
}
