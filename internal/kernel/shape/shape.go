// Package shape describes the grid's dimensions and region layout: an
// arbitrary rows x cols grid with an optional box tiling, plus the
// canonical house and adjacency enumerations everything else is built on.
package shape

import "fmt"

// Shape describes a grid's dimensions. It never mutates after construction.
type Shape struct {
	NumRows   int
	NumCols   int
	NumValues int
	BoxWidth  int // 0 when the grid has no canonical box tiling
	BoxHeight int
	NumCells  int

	hasBoxes bool
}

// New builds a Shape. boxWidth/boxHeight of 0 means "derive automatically
// when rows*cols == numValues^2, otherwise no boxes" — callers that already
// know their box dimensions should pass them explicitly.
func New(numRows, numCols, numValues, boxWidth, boxHeight int) *Shape {
	if boxWidth == 0 && boxHeight == 0 {
		return Default(numRows, numCols, numValues)
	}
	s := &Shape{
		NumRows:   numRows,
		NumCols:   numCols,
		NumValues: numValues,
		NumCells:  numRows * numCols,
	}
	if boxWidth > 0 && boxHeight > 0 && boxWidth*boxHeight == numValues {
		s.BoxWidth, s.BoxHeight, s.hasBoxes = boxWidth, boxHeight, true
	}
	return s
}

// Default returns the canonical "rows x cols" shape with boxes derived
// automatically: box width/height derive when rows*cols == numValues^2.
func Default(numRows, numCols, numValues int) *Shape {
	s := &Shape{NumRows: numRows, NumCols: numCols, NumValues: numValues, NumCells: numRows * numCols}
	if numRows*numCols == numValues*numValues {
		bestDiff := 1 << 30
		for h := 1; h <= numValues; h++ {
			if numValues%h != 0 {
				continue
			}
			w := numValues / h
			if numRows%h != 0 || numCols%w != 0 {
				continue
			}
			diff := w - h
			if diff < 0 {
				diff = -diff
			}
			// Prefer the squarest tiling; among ties, prefer boxWidth>=boxHeight
			// (the conventional orientation for e.g. 6x6 sudoku's 3x2 boxes).
			if diff < bestDiff || (diff == bestDiff && h <= w && h > s.BoxHeight) {
				bestDiff = diff
				s.BoxWidth, s.BoxHeight, s.hasBoxes = w, h, true
			}
		}
	}
	return s
}

// HasBoxes reports whether this shape has a canonical box tiling.
func (s *Shape) HasBoxes() bool {
	return s.hasBoxes
}

// CellIndex converts (row, col), both 0-indexed, to a flat cell id.
func (s *Shape) CellIndex(row, col int) int {
	return row*s.NumCols + col
}

// SplitCellIndex converts a flat cell id back to (row, col).
func (s *Shape) SplitCellIndex(cell int) (row, col int) {
	return cell / s.NumCols, cell % s.NumCols
}

// Row returns the cell ids of row r, 0-indexed.
func (s *Shape) Row(r int) []int {
	cells := make([]int, s.NumCols)
	for c := range cells {
		cells[c] = s.CellIndex(r, c)
	}
	return cells
}

// Col returns the cell ids of column c, 0-indexed.
func (s *Shape) Col(c int) []int {
	cells := make([]int, s.NumRows)
	for r := range cells {
		cells[r] = s.CellIndex(r, c)
	}
	return cells
}

// Box returns the cell ids of box b (0-indexed, row-major over the box
// grid), or nil if this shape has no canonical boxes.
func (s *Shape) Box(b int) []int {
	if !s.hasBoxes {
		return nil
	}
	boxesPerRow := s.NumCols / s.BoxWidth
	boxRow := (b / boxesPerRow) * s.BoxHeight
	boxCol := (b % boxesPerRow) * s.BoxWidth
	cells := make([]int, 0, s.NumValues)
	for r := boxRow; r < boxRow+s.BoxHeight; r++ {
		for c := boxCol; c < boxCol+s.BoxWidth; c++ {
			cells = append(cells, s.CellIndex(r, c))
		}
	}
	return cells
}

// Rows returns every row region.
func (s *Shape) Rows() [][]int {
	out := make([][]int, s.NumRows)
	for r := range out {
		out[r] = s.Row(r)
	}
	return out
}

// Cols returns every column region.
func (s *Shape) Cols() [][]int {
	out := make([][]int, s.NumCols)
	for c := range out {
		out[c] = s.Col(c)
	}
	return out
}

// Boxes returns every box region, or nil if this shape has no boxes.
func (s *Shape) Boxes() [][]int {
	if !s.hasBoxes {
		return nil
	}
	numBoxes := s.NumCells / s.NumValues
	out := make([][]int, numBoxes)
	for b := range out {
		out[b] = s.Box(b)
	}
	return out
}

// Houses returns rows, columns, and (when present) boxes — the three
// canonical all-different regions.
func (s *Shape) Houses() [][]int {
	houses := append(s.Rows(), s.Cols()...)
	if s.hasBoxes {
		houses = append(houses, s.Boxes()...)
	}
	return houses
}

// KnightPairs returns every unordered cell pair a chess knight's move
// apart, the adjacency anti-knight handlers forbid equal values across
//.
func (s *Shape) KnightPairs() [][2]int {
	deltas := [][2]int{{1, 2}, {1, -2}, {-1, 2}, {-1, -2}, {2, 1}, {2, -1}, {-2, 1}, {-2, -1}}
	return s.deltaPairs(deltas)
}

// KingPairs returns every unordered cell pair a chess king's move apart
// (the 8 neighbors, including diagonals).
func (s *Shape) KingPairs() [][2]int {
	deltas := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	return s.deltaPairs(deltas)
}

// OrthogonalPairs returns every unordered pair of orthogonally adjacent
// cells, used by anti-consecutive and taxicab-distance variants.
func (s *Shape) OrthogonalPairs() [][2]int {
	deltas := [][2]int{{1, 0}, {0, 1}}
	return s.deltaPairs(deltas)
}

// deltaPairs enumerates the unordered pair (cell, cell+offset) for every
// cell and every offset in deltas, keeping only a<b so each pair (whose
// offset and its negation both appear in deltas) is emitted once.
func (s *Shape) deltaPairs(deltas [][2]int) [][2]int {
	var out [][2]int
	for r := 0; r < s.NumRows; r++ {
		for c := 0; c < s.NumCols; c++ {
			for _, d := range deltas {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= s.NumRows || nc < 0 || nc >= s.NumCols {
					continue
				}
				a, b := s.CellIndex(r, c), s.CellIndex(nr, nc)
				if a < b {
					out = append(out, [2]int{a, b})
				}
			}
		}
	}
	return out
}

// columnLetter renders a 0-indexed column as the digit/hex-digit column
// identifier used in wire-facing cell ids: 1-9 for columns < 9,
// a-g for columns >= 9 (supports grids up to 16 wide).
func columnLetter(col int) byte {
	if col < 9 {
		return byte('1' + col)
	}
	return byte('a' + col - 9)
}

// MakeCellID formats a cell as "R{row}C{col}", 1-indexed, with the column
// expressed as a digit or hex digit.
func (s *Shape) MakeCellID(cell int) string {
	row, col := s.SplitCellIndex(cell)
	return fmt.Sprintf("R%dC%c", row+1, columnLetter(col))
}
