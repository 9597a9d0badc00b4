package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/shape"
)

// FullGridRequiredValues generalizes the per-house hidden-single count to
// the whole grid:
// on a rectangular grid where only one axis's houses are full (length ==
// numValues), a value's occurrences across the other, shorter axis are
// never pinned down by any single house. This handler instead tracks each
// value's occurrences across every watched cell and caps it at
// cellsPerValue, pruning the value from every remaining open cell once
// that cap is reached and failing if too few open hosts remain to reach
// it.
type FullGridRequiredValues struct {
	base
	cellsPerValue int
	numValues     int
}

// NewFullGridRequiredValues builds the handler over cells (normally every
// cell in the grid) with the given required per-value occurrence count.
func NewFullGridRequiredValues(cells []int, cellsPerValue int) *FullGridRequiredValues {
	return &FullGridRequiredValues{base: newBase("fullgridrequiredvalues", cells, cellsPerValue), cellsPerValue: cellsPerValue}
}

func (h *FullGridRequiredValues) Initialize(_ handler.Grid, _ *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	return true
}

func (h *FullGridRequiredValues) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	var fixedCount [17]int
	var openHosts [17][]int
	for _, c := range h.cells {
		m := g.Get(c)
		if v, ok := m.Singleton(); ok {
			fixedCount[v]++
			continue
		}
		for _, v := range m.ToSlice() {
			openHosts[v] = append(openHosts[v], c)
		}
	}

	for v := 1; v <= h.numValues; v++ {
		if fixedCount[v] > h.cellsPerValue {
			return false
		}
		if fixedCount[v]+len(openHosts[v]) < h.cellsPerValue {
			return false // not enough remaining hosts to ever satisfy the required count
		}
		if fixedCount[v] == h.cellsPerValue {
			for _, c := range openHosts[v] {
				if !handler.Prune(g, acc, c, g.Get(c).Without(v)) {
					return false
				}
			}
		}
	}
	return true
}
