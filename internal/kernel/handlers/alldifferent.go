package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// AllDifferent enforces that every cell in a house (row, column, box,
// jigsaw region, windoku region, diagonal, …) takes a distinct value,
// via naked-single and hidden-single passes over an arbitrary cell list.
type AllDifferent struct {
	base
	numValues int
}

// NewAllDifferent builds an AllDifferent handler over cells.
func NewAllDifferent(cells []int) *AllDifferent {
	return &AllDifferent{base: newBase("alldifferent", cells)}
}

func (h *AllDifferent) Initialize(_ handler.Grid, excl *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	if len(h.cells) > sh.NumValues {
		return false // pigeonhole: more pairwise-distinct cells than values
	}
	excl.AddAllDifferent(h.cells)
	return true
}

// Priority runs houses before the heavier sum/line handlers in each
// propagation pass; their singles are cheap and feed everyone else.
func (h *AllDifferent) Priority() int { return 1 }

// CandidateFinders nominates "where does value v go in this house"
// branch plans. Only full houses qualify: there every
// value must appear exactly once, so the host list is an exhaustive
// case split.
func (h *AllDifferent) CandidateFinders() []handler.Finder {
	return []handler.Finder{h.findTightestValue}
}

func (h *AllDifferent) findTightestValue(g handler.Grid) (score, value int, cells []int, ok bool) {
	if len(h.cells) != h.numValues {
		return 0, 0, nil, false
	}
	var bestHosts []int
	bestValue := 0
	for v := 1; v <= h.numValues; v++ {
		var hosts []int
		placed := false
		for _, c := range h.cells {
			m := g.Get(c)
			if fv, fixed := m.Singleton(); fixed {
				if fv == v {
					placed = true
					break
				}
				continue
			}
			if m.Has(v) {
				hosts = append(hosts, c)
			}
		}
		if placed || len(hosts) < 2 {
			continue
		}
		if bestHosts == nil || len(hosts) < len(bestHosts) {
			bestHosts, bestValue = hosts, v
		}
	}
	if bestHosts == nil {
		return 0, 0, nil, false
	}
	return h.numValues - len(bestHosts), bestValue, bestHosts, true
}

func (h *AllDifferent) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	// Naked singles: a singleton cell's value is removed from every peer.
	for _, c := range h.cells {
		m := g.Get(c)
		if v, ok := m.Singleton(); ok {
			for _, other := range h.cells {
				if other == c {
					continue
				}
				om := g.Get(other)
				if !om.Has(v) {
					continue
				}
				if !handler.Prune(g, acc, other, om.Without(v)) {
					return false
				}
			}
		}
	}

	// Hidden singles (full houses only): a value with exactly one remaining
	// host cell is fixed there.
	var placementCount [17]int
	var placementCell [17]int
	for _, c := range h.cells {
		m := g.Get(c)
		for _, v := range m.ToSlice() {
			placementCount[v]++
			placementCell[v] = c
		}
	}
	isHouse := len(h.cells) == h.numValues
	for v := 1; v <= h.numValues; v++ {
		switch placementCount[v] {
		case 0:
			if isHouse {
				// Every value must appear exactly once in a full house; a
				// required value with no host is a wipeout, caught here
				// instead of waiting for some cell's mask to empty out.
				return false
			}
		case 1:
			if !isHouse {
				// A shorter cell list need not contain every value.
				continue
			}
			c := placementCell[v]
			if !handler.Prune(g, acc, c, lookup.Bit(v)) {
				return false
			}
		}
	}

	for _, c := range h.cells {
		if g.Get(c).IsEmpty() {
			return false
		}
	}
	return true
}
