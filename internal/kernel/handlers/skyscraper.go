package handlers

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Skyscraper requires that, scanning cells from the clue's side, exactly
// count distinct "peaks" (a value taller than every one before it) are
// seen before the tallest possible value. XSum sums the first N cells
// where N is the value of the first cell. NumberedRoom reports the value
// at the position given by the first cell. HiddenSkyscraper is Skyscraper
// evaluated from the side where the tallest value isn't visible first.
// All four are edge-clue constraints over one ordered house; they
// share the same "enumerate consistent permutations prefix" propagation
// shape, specialized per clue kind below.
type clueKind int

const (
	clueSkyscraper clueKind = iota
	clueXSum
	clueNumberedRoom
	clueHiddenSkyscraper
)

type EdgeClue struct {
	base
	kind      clueKind
	target    int
	numValues int
}

// NewSkyscraper builds a skyscraper clue: count buildings visible from the
// clue's side (cells ordered near-to-far).
func NewSkyscraper(cells []int, count int) *EdgeClue {
	return &EdgeClue{base: newBase("skyscraper", cells, count), kind: clueSkyscraper, target: count}
}

// NewXSum builds an X-sum clue: the sum of the first N cells, where N is
// the value of the first cell itself.
func NewXSum(cells []int, target int) *EdgeClue {
	return &EdgeClue{base: newBase("xsum", cells, target), kind: clueXSum, target: target}
}

// NewNumberedRoom builds a numbered-room clue: the value at the position
// given by the first cell equals target.
func NewNumberedRoom(cells []int, target int) *EdgeClue {
	return &EdgeClue{base: newBase("numberedroom", cells, target), kind: clueNumberedRoom, target: target}
}

// NewHiddenSkyscraper builds a hidden-skyscraper clue: count peaks are
// visible from the clue's side exactly as with Skyscraper, but the
// tallest value in the house is never adjacent to the clue — it's hidden
// somewhere further down the line instead of being the first peak.
func NewHiddenSkyscraper(cells []int, count int) *EdgeClue {
	return &EdgeClue{base: newBase("hiddenskyscraper", cells, count), kind: clueHiddenSkyscraper, target: count}
}

func (h *EdgeClue) Initialize(_ handler.Grid, _ *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	return true
}

func (h *EdgeClue) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	switch h.kind {
	case clueNumberedRoom:
		return h.enforceNumberedRoom(g, acc)
	case clueXSum:
		return h.enforceXSum(g, acc)
	case clueHiddenSkyscraper:
		return h.enforceHiddenSkyscraper(g, acc)
	default:
		return h.enforceSkyscraper(g, acc)
	}
}

// enforceHiddenSkyscraper forbids the tallest value from the clue-adjacent
// cell — if it sat there, it would itself be the first (and only) peak
// visible, contradicting "hidden" — then falls back to the ordinary
// peak-count bounds check shared with Skyscraper.
func (h *EdgeClue) enforceHiddenSkyscraper(g handler.Grid, acc handler.Accumulator) bool {
	first := g.Get(h.cells[0])
	if !handler.Prune(g, acc, h.cells[0], first.Without(h.numValues)) {
		return false
	}
	return h.enforceSkyscraper(g, acc)
}

func (h *EdgeClue) enforceNumberedRoom(g handler.Grid, acc handler.Accumulator) bool {
	first := g.Get(h.cells[0])
	var allowedFirst lookup.Mask
	for _, pos := range first.ToSlice() {
		if pos < 1 || pos > len(h.cells) {
			continue
		}
		if g.Get(h.cells[pos-1]).Has(h.target) {
			allowedFirst = allowedFirst.With(pos)
		}
	}
	if !handler.Prune(g, acc, h.cells[0], allowedFirst) {
		return false
	}
	if pos, ok := g.Get(h.cells[0]).Singleton(); ok {
		if !handler.Prune(g, acc, h.cells[pos-1], lookup.Bit(h.target)) {
			return false
		}
	}
	return true
}

func (h *EdgeClue) enforceXSum(g handler.Grid, acc handler.Accumulator) bool {
	first := g.Get(h.cells[0])
	var allowedFirst lookup.Mask
	for _, n := range first.ToSlice() {
		if n < 1 || n > len(h.cells) {
			continue
		}
		masks := make([]lookup.Mask, n)
		masks[0] = lookup.Bit(n)
		for i := 1; i < n; i++ {
			masks[i] = g.Get(h.cells[i])
		}
		tables := lookup.For(h.numValues)
		min, max, ok := rangeBound(tables, masks)
		if ok && h.target >= min && h.target <= max && sumReachable(masks, h.target) {
			allowedFirst = allowedFirst.With(n)
		}
	}
	if !handler.Prune(g, acc, h.cells[0], allowedFirst) {
		return false
	}
	return true
}

// enforceSkyscraper is a best-effort bounds check mid-search and an
// exact check once the line is fully assigned: it verifies the remaining
// candidates can still realize h.target peaks, without attempting the
// full peak-counting propagation a dedicated permutation-DP would give.
// The house's own AllDifferent handler does most of the pruning; the
// solved-line check is what rejects a complete assignment whose actual
// peak count disagrees with the clue.
func (h *EdgeClue) enforceSkyscraper(g handler.Grid, acc handler.Accumulator) bool {
	masks := readCells(g, h.cells)
	if peaks, solved := exactPeakCount(masks); solved {
		return peaks == h.target
	}
	minPeaks, maxPeaks := possiblePeakRange(masks)
	if h.target < minPeaks || h.target > maxPeaks {
		return false
	}
	return true
}

// exactPeakCount counts the visible peaks of a fully-assigned line,
// reporting false while any cell is still open.
func exactPeakCount(masks []lookup.Mask) (int, bool) {
	peaks, runningMax := 0, 0
	for _, m := range masks {
		v, ok := m.Singleton()
		if !ok {
			return 0, false
		}
		if v > runningMax {
			peaks++
			runningMax = v
		}
	}
	return peaks, true
}

func readCells(g handler.Grid, cells []int) []lookup.Mask {
	out := make([]lookup.Mask, len(cells))
	for i, c := range cells {
		out[i] = g.Get(c)
	}
	return out
}

// possiblePeakRange bounds the number of skyline peaks achievable given
// each cell's mask: for the max, a cell counts when one of its candidates
// exceeds the largest lowest candidate of the cells before it, and
// the case where every cell but the first is below the running max for
// the min (1 peak, the first cell, is always achievable if the first
// cell's own mask is non-empty).
func possiblePeakRange(masks []lookup.Mask) (min, max int) {
	if len(masks) == 0 {
		return 0, 0
	}
	min = 1
	max = 0
	floor := 0 // every earlier cell's value is at least its Lowest
	for _, m := range masks {
		if m.IsEmpty() {
			continue
		}
		if m.Highest() > floor {
			max++
		}
		if m.Lowest() > floor {
			floor = m.Lowest()
		}
	}
	if max < min {
		max = min
	}
	return min, max
}

// DFALine enforces a compiled finite-automaton constraint over an ordered
// cell sequence: arbitrary per-value transition rules
// (used for variants like renban-or-thermometer hybrids, or custom
// "German whisper but also no repeats within 3" lines) expressed once as a
// DFA rather than as a bespoke handler per rule shape.
type DFALine struct {
	base
	transitions map[int]map[int][]int // state -> value -> next states
	start       []int
	accept      map[int]bool
	numValues   int
}

// NewDFALine builds a DFA-driven line handler. transitions maps a state to
// the set of next states reachable on each value; start lists the
// possible initial states; accept marks which states are accepting after
// consuming the whole line.
func NewDFALine(cells []int, transitions map[int]map[int][]int, start []int, accept map[int]bool) *DFALine {
	return &DFALine{base: newBase("dfaline", cells), transitions: transitions, start: start, accept: accept}
}

func (h *DFALine) Initialize(_ handler.Grid, _ *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	return true
}

// EnforceConsistency runs a forward/backward DFA sweep (like a compressed
// arc-consistency pass over a chain CSP): reachableForward[i] is the set
// of states reachable at position i consistent with cells[0:i]'s current
// masks; reachableBackward[i] is the set of states from which an accept
// state is still reachable using cells[i:]. A value v is prunable at
// position i if no forward state transitions to a backward-live state on v.
func (h *DFALine) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	n := len(h.cells)
	forward := make([]map[int]bool, n+1)
	forward[0] = map[int]bool{}
	for _, s := range h.start {
		forward[0][s] = true
	}
	for i := 0; i < n; i++ {
		next := map[int]bool{}
		mask := g.Get(h.cells[i])
		for s := range forward[i] {
			for _, v := range mask.ToSlice() {
				for _, ns := range h.transitions[s][v] {
					next[ns] = true
				}
			}
		}
		forward[i+1] = next
		if len(next) == 0 {
			return false
		}
	}

	backward := make([]map[int]bool, n+1)
	backward[n] = map[int]bool{}
	for s := range h.accept {
		if h.accept[s] {
			backward[n][s] = true
		}
	}
	for i := n - 1; i >= 0; i-- {
		prev := map[int]bool{}
		mask := g.Get(h.cells[i])
		for s := range forward[i] {
			for _, v := range mask.ToSlice() {
				for _, ns := range h.transitions[s][v] {
					if backward[i+1][ns] {
						prev[s] = true
					}
				}
			}
		}
		backward[i] = prev
	}

	for i := 0; i < n; i++ {
		mask := g.Get(h.cells[i])
		var allowed lookup.Mask
		for _, v := range mask.ToSlice() {
			ok := false
			for s := range forward[i] {
				for _, ns := range h.transitions[s][v] {
					if backward[i+1][ns] {
						ok = true
					}
				}
			}
			if ok {
				allowed = allowed.With(v)
			}
		}
		if !handler.Prune(g, acc, h.cells[i], allowed) {
			return false
		}
	}
	return true
}

// True and False are the Optimizer's collapse targets: a handler
// proven always-satisfied or proven infeasible is replaced by one of
// these, so the engine doesn't keep re-running dead propagation logic.
type True struct{ base }

// NewTrue builds a no-op handler over cells, used when the optimizer
// proves a constraint is already guaranteed.
func NewTrue(cells []int) *True { return &True{base: newBase("true", cells)} }

func (h *True) Initialize(handler.Grid, *exclusions.Set, *shape.Shape, handler.StateAllocator) bool {
	return true
}
func (h *True) EnforceConsistency(handler.Grid, handler.Accumulator) bool { return true }

// False marks a constraint the optimizer proved impossible to satisfy
// (e.g. a sum-intersection that can never reconcile), so construction
// fails fast instead of running a doomed search.
type False struct{ base }

// NewFalse builds an always-failing handler over cells.
func NewFalse(cells []int) *False { return &False{base: newBase("false", cells)} }

func (h *False) Initialize(handler.Grid, *exclusions.Set, *shape.Shape, handler.StateAllocator) bool {
	return false
}
func (h *False) EnforceConsistency(handler.Grid, handler.Accumulator) bool { return false }
