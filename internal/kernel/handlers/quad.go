package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Quad requires every value in required to appear in at least one of
// cells (typically the 4 cells meeting at a grid intersection point).
// Values may repeat in required if a clue demands the
// same digit be placed twice among the four cells; that case needs two
// distinct hosts, handled by decrementing a per-value need counter rather
// than a simple presence check.
type Quad struct {
	base
	need map[int]int
}

// NewQuad builds a Quad handler over cells for the clue values in required.
func NewQuad(cells []int, required []int) *Quad {
	need := map[int]int{}
	for _, v := range required {
		need[v]++
	}
	return &Quad{base: newBase("quad", cells, required), need: need}
}

func (h *Quad) Initialize(_ handler.Grid, _ *exclusions.Set, _ *shape.Shape, _ handler.StateAllocator) bool {
	return true
}

func (h *Quad) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	for v, need := range h.need {
		var hosts []int
		for _, c := range h.cells {
			if g.Get(c).Has(v) {
				hosts = append(hosts, c)
			}
		}
		if len(hosts) < need {
			return false
		}
		if len(hosts) == need {
			for _, c := range hosts {
				if !handler.Prune(g, acc, c, lookup.Bit(v)) {
					return false
				}
			}
		}
	}
	return true
}

// Indexing implements self-referential "indexer" lines: the cell at row[indexPos] holds a 1-based
// column number c; the cell at row[c-1] is then constrained by required.
// Indexing requires that target cell equal the line's own ordinal
// (rowNumber); ValueIndexing requires it equal c itself (the index
// cell's own value, i.e. the referenced cell "points back" at its pointer).
type Indexing struct {
	base
	row           []int
	indexPos      int
	valueIndexing bool
	rowNumber     int
}

// NewIndexing builds an indexing handler over one row/column's cells.
func NewIndexing(row []int, indexPos int, valueIndexing bool, rowNumber int) *Indexing {
	return &Indexing{base: newBase("indexing", row, indexPos, valueIndexing, rowNumber), row: row, indexPos: indexPos, valueIndexing: valueIndexing, rowNumber: rowNumber}
}

func (h *Indexing) Initialize(_ handler.Grid, _ *exclusions.Set, _ *shape.Shape, _ handler.StateAllocator) bool {
	return true
}

func (h *Indexing) required(c int) int {
	if h.valueIndexing {
		return c
	}
	return h.rowNumber
}

func (h *Indexing) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	idxCell := h.row[h.indexPos]
	idxMask := g.Get(idxCell)

	var allowedIdx lookup.Mask
	for _, c := range idxMask.ToSlice() {
		if c < 1 || c > len(h.row) {
			continue
		}
		target := h.row[c-1]
		if g.Get(target).Has(h.required(c)) {
			allowedIdx = allowedIdx.With(c)
		}
	}
	if !handler.Prune(g, acc, idxCell, allowedIdx) {
		return false
	}

	if v, ok := g.Get(idxCell).Singleton(); ok {
		target := h.row[v-1]
		if !handler.Prune(g, acc, target, lookup.Bit(h.required(v))) {
			return false
		}
	}
	return true
}
