package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// BetweenLockout bounds a line's middle cells relative to its two
// endpoints. Between requires every middle cell
// to lie strictly inside the endpoints' range; Lockout requires every
// middle cell to lie outside the open range between them (a middle value
// may equal an endpoint's value) and the endpoints to differ by
// at least minGap. Both reduce to the same "derive [lo,hi] from the
// endpoints, then restrict (inside or outside) the middle cells" shape.
type BetweenLockout struct {
	base
	low, high []int // endpoint cells; the other line cells are kept in middle
	middle    []int
	lockout   bool
	minGap    int
}

// NewBetween builds a between handler: low and high are the two endpoint
// cells (order unconstrained — whichever ends up smaller bounds the band),
// middle the cells that must fall strictly inside.
func NewBetween(lowCell, highCell int, middle []int) *BetweenLockout {
	all := append([]int{lowCell, highCell}, middle...)
	return &BetweenLockout{base: newBase("between", all), low: []int{lowCell}, high: []int{highCell}, middle: middle}
}

// NewLockout builds a lockout handler: endpoints must differ by at least
// minGap (4 in the standard variant), and every middle cell must fall
// outside the open range between them (equal to an endpoint is allowed).
func NewLockout(lowCell, highCell int, middle []int, minGap int) *BetweenLockout {
	all := append([]int{lowCell, highCell}, middle...)
	return &BetweenLockout{base: newBase("lockout", all, minGap), low: []int{lowCell}, high: []int{highCell}, middle: middle, lockout: true, minGap: minGap}
}

func (h *BetweenLockout) Initialize(_ handler.Grid, _ *exclusions.Set, _ *shape.Shape, _ handler.StateAllocator) bool {
	return true
}

func (h *BetweenLockout) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	lowCell, highCell := h.low[0], h.high[0]
	ml, mh := g.Get(lowCell), g.Get(highCell)

	if h.lockout {
		// Endpoints can't be within minGap of each other.
		var allowedLow, allowedHigh lookup.Mask
		for _, v := range ml.ToSlice() {
			for _, w := range mh.ToSlice() {
				d := v - w
				if d < 0 {
					d = -d
				}
				if d >= h.minGap {
					allowedLow = allowedLow.With(v)
					allowedHigh = allowedHigh.With(w)
				}
			}
		}
		if !handler.Prune(g, acc, lowCell, allowedLow) {
			return false
		}
		if !handler.Prune(g, acc, highCell, allowedHigh) {
			return false
		}
		ml, mh = g.Get(lowCell), g.Get(highCell)
	}

	if ml.IsEmpty() || mh.IsEmpty() {
		return false
	}

	for _, c := range h.middle {
		m := g.Get(c)
		var allowed lookup.Mask
		for _, v := range m.ToSlice() {
			if h.lockout {
				// v survives if some endpoint assignment leaves it outside
				// the endpoints' span: at-or-below both, or at-or-above both.
				belowBoth := v <= ml.Highest() && v <= mh.Highest()
				aboveBoth := v >= ml.Lowest() && v >= mh.Lowest()
				if belowBoth || aboveBoth {
					allowed = allowed.With(v)
				}
			} else {
				// v survives if some endpoint assignment brackets it strictly.
				if (ml.Lowest() < v && v < mh.Highest()) || (mh.Lowest() < v && v < ml.Highest()) {
					allowed = allowed.With(v)
				}
			}
		}
		if !handler.Prune(g, acc, c, allowed) {
			return false
		}
	}
	return true
}
