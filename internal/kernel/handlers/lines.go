package handlers

import (
	"strconv"

	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// NewThermometer builds a strictly-increasing chain along cells (bulb
// first): each adjacent pair gets a RelLessThan BinaryConstraint. A chain
// of BinaryConstraint pairs rather than one BinaryPairwise handler, since
// the relation only needs to hold between consecutive bulbs, not every
// pair.
func NewThermometer(cells []int) []handler.Handler {
	return chainPairwise(cells, RelLessThan)
}

// NewRenban builds a "consecutive set, any order" line: k
// distinct values span a range of at least k-1, with equality iff they're
// consecutive, so AllDifferent (distinctness) plus a pairwise "|a-b| <=
// k-1" bound over every pair together fully enforce it — no cell needs to
// be a syntactic min/max for this to work.
func NewRenban(cells []int) []handler.Handler {
	k := len(cells)
	out := []handler.Handler{NewAllDifferent(cells)}
	if k > 1 {
		out = append(out, NewBinaryPairwise(cells, RelDifferByAtMost(k-1), false))
	}
	return out
}

// RelDifferByAtMost is the "|a-b| <= d" relation, the pairwise half of
// Renban's consecutive-set bound.
func RelDifferByAtMost(d int) Relation {
	return Relation{
		Key: "differbyatmost" + strconv.Itoa(d),
		Pred: func(a, b int) bool {
			diff := a - b
			if diff < 0 {
				diff = -diff
			}
			return diff <= d
		},
	}
}

// NewWhisper builds a German-whisper style line: adjacent cells must
// differ by at least gap.
func NewWhisper(cells []int, gap int) []handler.Handler {
	return chainPairwise(cells, RelDifferBy(gap))
}

// NewPalindrome mirrors cells[i] with cells[len-1-i], forcing equal values
// across the line's reflection.
func NewPalindrome(cells []int) []handler.Handler {
	var out []handler.Handler
	n := len(cells)
	for i := 0; i < n/2; i++ {
		out = append(out, NewBinaryConstraint(cells[i], cells[n-1-i], RelEqual))
	}
	return out
}

// chainPairwise links each consecutive pair in cells with rel.
func chainPairwise(cells []int, rel Relation) []handler.Handler {
	var out []handler.Handler
	for i := 0; i+1 < len(cells); i++ {
		out = append(out, NewBinaryConstraint(cells[i], cells[i+1], rel))
	}
	return out
}

// Entropic groups the domain into low/mid/high bands of (numValues+2)/3
// consecutive values each (the high band takes what is left) and requires
// every window of three consecutive line cells to contain one value from
// each band. Modular does the same for value mod m
// residue classes. Both reduce to the same "every window hits every
// class" shape, parameterized by a classOf function.
type ClassifiedLine struct {
	base
	windowSize int
	classOf    func(v int) int
	numClasses int
}

// NewEntropicLine builds an entropic line with the standard 3-way low/mid/
// high split.
func NewEntropicLine(cells []int, numValues int) *ClassifiedLine {
	band := (numValues + 2) / 3
	classOf := func(v int) int {
		c := (v - 1) / band
		if c > 2 {
			c = 2
		}
		return c
	}
	return newClassifiedLine(cells, classOf, 3)
}

// NewModularLine builds a modular line where every window of m consecutive
// cells must contain one value of each residue class mod m.
func NewModularLine(cells []int, m int) *ClassifiedLine {
	classOf := func(v int) int { return (v - 1) % m }
	return newClassifiedLine(cells, classOf, m)
}

func newClassifiedLine(cells []int, classOf func(v int) int, numClasses int) *ClassifiedLine {
	return &ClassifiedLine{base: newBase("classifiedline", cells, numClasses), windowSize: numClasses, classOf: classOf, numClasses: numClasses}
}

func (h *ClassifiedLine) Initialize(_ handler.Grid, _ *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	return true
}

func (h *ClassifiedLine) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	if len(h.cells) < h.windowSize {
		return true
	}
	for start := 0; start+h.windowSize <= len(h.cells); start++ {
		window := h.cells[start : start+h.windowSize]

		// Which classes does each cell still admit?
		classMaskPerCell := make([]lookup.Mask, len(window))
		for i, c := range window {
			m := g.Get(c)
			var classes lookup.Mask
			for _, v := range m.ToSlice() {
				classes = classes.With(h.classOf(v) + 1)
			}
			classMaskPerCell[i] = classes
		}

		// Each of the numClasses classes needs exactly one host among this
		// window's cells: hidden-single style reasoning over classes.
		placementCount := make([]int, h.numClasses+1)
		placementIdx := make([]int, h.numClasses+1)
		for i, classes := range classMaskPerCell {
			for _, cl := range classes.ToSlice() {
				placementCount[cl]++
				placementIdx[cl] = i
			}
		}
		for cl := 1; cl <= h.numClasses; cl++ {
			if placementCount[cl] == 0 {
				return false
			}
			if placementCount[cl] == 1 {
				i := placementIdx[cl]
				c := window[i]
				var allowed lookup.Mask
				for _, v := range g.Get(c).ToSlice() {
					if h.classOf(v)+1 == cl {
						allowed = allowed.With(v)
					}
				}
				if !handler.Prune(g, acc, c, allowed) {
					return false
				}
			}
		}
	}
	return true
}
