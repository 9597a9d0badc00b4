package shape

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCellID parses a wire-facing cell id of the form "R<row>C<col>"
// (1-based row, 1-based column expressed as a digit 1-9 or hex digit a-g
// for columns >= 10) back into a flat cell index.
func (s *Shape) ParseCellID(cellID string) (int, error) {
	row, col, err := splitCellID(cellID)
	if err != nil {
		return 0, err
	}
	if row < 0 || row >= s.NumRows || col < 0 || col >= s.NumCols {
		return 0, fmt.Errorf("shape: cell %q out of bounds for %dx%d grid", cellID, s.NumRows, s.NumCols)
	}
	return s.CellIndex(row, col), nil
}

func splitCellID(cellID string) (row, col int, err error) {
	if len(cellID) < 4 || cellID[0] != 'R' {
		return 0, 0, fmt.Errorf("shape: malformed cell id %q", cellID)
	}
	cIdx := strings.IndexByte(cellID, 'C')
	if cIdx < 0 || cIdx == len(cellID)-1 {
		return 0, 0, fmt.Errorf("shape: malformed cell id %q", cellID)
	}
	rowStr := cellID[1:cIdx]
	colStr := cellID[cIdx+1:]

	r, err := strconv.Atoi(rowStr)
	if err != nil {
		return 0, 0, fmt.Errorf("shape: malformed row in cell id %q: %w", cellID, err)
	}

	if len(colStr) != 1 {
		return 0, 0, fmt.Errorf("shape: malformed column in cell id %q", cellID)
	}
	c, err := columnIndex(colStr[0])
	if err != nil {
		return 0, 0, fmt.Errorf("shape: malformed column in cell id %q: %w", cellID, err)
	}
	return r - 1, c, nil
}

func columnIndex(ch byte) (int, error) {
	switch {
	case ch >= '1' && ch <= '9':
		return int(ch - '1'), nil
	case ch >= 'a' && ch <= 'g':
		return 9 + int(ch-'a'), nil
	default:
		return 0, fmt.Errorf("invalid column digit %q", ch)
	}
}

// ParseTag parses the canonical grid shape tag "{rows}x{cols}" with an
// optional "~{numValues}" suffix. A bare "9x9" default is assumed when
// the tag is empty. Box dimensions derive automatically per Default.
func ParseTag(tag string) (*Shape, error) {
	if tag == "" {
		tag = "9x9"
	}

	numValues := 0
	if idx := strings.IndexByte(tag, '~'); idx >= 0 {
		nv, err := strconv.Atoi(tag[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("shape: invalid numValues suffix in %q: %w", tag, err)
		}
		numValues = nv
		tag = tag[:idx]
	}

	xIdx := strings.IndexByte(tag, 'x')
	if xIdx < 0 {
		return nil, fmt.Errorf("shape: malformed shape tag %q", tag)
	}
	rows, err := strconv.Atoi(tag[:xIdx])
	if err != nil {
		return nil, fmt.Errorf("shape: invalid row count in %q: %w", tag, err)
	}
	cols, err := strconv.Atoi(tag[xIdx+1:])
	if err != nil {
		return nil, fmt.Errorf("shape: invalid column count in %q: %w", tag, err)
	}

	if numValues == 0 {
		numValues = cols
		if rows > numValues {
			numValues = rows
		}
	}
	if rows <= 0 || cols <= 0 || numValues <= 0 || numValues > 16 {
		return nil, fmt.Errorf("shape: shape tag %q out of supported range", tag)
	}

	return Default(rows, cols, numValues), nil
}

// Tag renders the canonical shape tag for this shape.
func (s *Shape) Tag() string {
	if s.NumValues == s.NumCols && s.NumValues == s.NumRows {
		return fmt.Sprintf("%dx%d", s.NumRows, s.NumCols)
	}
	return fmt.Sprintf("%dx%d~%d", s.NumRows, s.NumCols, s.NumValues)
}
