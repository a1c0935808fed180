package fusion

import (
	"strings"

	"github.com/menta2k/meal-analyzer/pkg/types"
)

// DefaultEmptyNames are identifier answers that mean "nothing here"
var DefaultEmptyNames = []string{"none", "empty", "없음", "빈칸"}

// GridLayout returns the grid shape for a frame: 3 columns by 2 rows for
// landscape or square frames, 2 columns by 3 rows for portrait ones.
func GridLayout(width, height int) (cols, rows int) {
	if width >= height {
		return 3, 2
	}
	return 2, 3
}

// GridCells tiles the frame row by row. The last row and column absorb the
// rounding remainder so the cells cover the frame exactly.
func GridCells(width, height int) []types.Box {
	cols, rows := GridLayout(width, height)
	cellW := width / cols
	cellH := height / rows

	cells := make([]types.Box, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := types.Box{
				X1: col * cellW,
				Y1: row * cellH,
				X2: (col + 1) * cellW,
				Y2: (row + 1) * cellH,
			}
			if col == cols-1 {
				cell.X2 = width
			}
			if row == rows-1 {
				cell.Y2 = height
			}
			cells = append(cells, cell)
		}
	}
	return cells
}

// isEmptyName reports whether an identifier answer carries no food name
func isEmptyName(name string, stoplist []string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	for _, s := range stoplist {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
