package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Sandwich requires the cells strictly between the positions holding
// lowValue and highValue along an ordered house to sum to target.
// Lunchbox is the same shape with an arbitrary pair of marker
// values instead of the fixed extremes 1 and numValues, so both share this
// one implementation parameterized by (lowValue, highValue).
type Sandwich struct {
	base
	lowValue, highValue int
	target              int
	tables              *lookup.Tables
}

// NewSandwich builds the classic sandwich handler for house cells (in
// positional order along the house) with markers 1 and numValues.
func NewSandwich(cells []int, target int, numValues int) *Sandwich {
	return newMarkerSum(cells, 1, numValues, target)
}

// NewLunchbox builds a marker-sum handler for an arbitrary pair of marker
// values.
func NewLunchbox(cells []int, lowValue, highValue, target int) *Sandwich {
	return newMarkerSum(cells, lowValue, highValue, target)
}

func newMarkerSum(cells []int, lowValue, highValue, target int) *Sandwich {
	return &Sandwich{base: newBase("sandwich", cells, lowValue, highValue, target), lowValue: lowValue, highValue: highValue, target: target}
}

func (h *Sandwich) Initialize(_ handler.Grid, _ *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.tables = lookup.For(sh.NumValues)
	return true
}

func (h *Sandwich) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	n := len(h.cells)

	var lowPos, highPos []int
	for i, c := range h.cells {
		m := g.Get(c)
		if m.Has(h.lowValue) {
			lowPos = append(lowPos, i)
		}
		if m.Has(h.highValue) {
			highPos = append(highPos, i)
		}
	}
	if len(lowPos) == 0 || len(highPos) == 0 {
		return false
	}

	feasibleLow := map[int]bool{}
	feasibleHigh := map[int]bool{}
	anyFeasible := false

	for _, i := range lowPos {
		for _, j := range highPos {
			if i == j {
				continue
			}
			lo, hi := i+1, j-1
			if lo > hi {
				lo, hi = j+1, i-1
			}
			var between []lookup.Mask
			for k := lo; k <= hi; k++ {
				between = append(between, g.Get(h.cells[k]))
			}
			min, max, ok := rangeBound(h.tables, between)
			if !ok || h.target < min || h.target > max {
				continue
			}
			if !sumReachable(between, h.target) {
				continue
			}
			feasibleLow[i] = true
			feasibleHigh[j] = true
			anyFeasible = true
		}
	}
	if !anyFeasible {
		return false
	}

	for i := 0; i < n; i++ {
		c := h.cells[i]
		m := g.Get(c)
		allowed := m
		if m.Has(h.lowValue) && !feasibleLow[i] {
			allowed = allowed.Without(h.lowValue)
		}
		if m.Has(h.highValue) && !feasibleHigh[i] {
			allowed = allowed.Without(h.highValue)
		}
		if allowed != m {
			if !handler.Prune(g, acc, c, allowed) {
				return false
			}
		}
	}
	return true
}
