// Package handlerset collects the handlers built for one puzzle and
// applies construction-time optimizations over them: deduplication,
// two-phase initialization, and the Optimizer rewrites (derived sums,
// gap fills, trivial-cage collapses) that run before the engine ever
// does.
package handlerset

import (
	"fmt"

	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/handlers"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Set holds the handlers wired into one solve, indexed by the cells they
// watch so the accumulator can be built directly from it.
type Set struct {
	Handlers []handler.Handler
	Shape    *shape.Shape
	Excl     *exclusions.Set
}

// New deduplicates handlers by IDStr (two constraints that reduce to the
// identical propagator only need to run once) and initializes them in two
// passes: first every handler that only registers exclusions (so the
// exclusion graph is fully populated before anything seals it by reading),
// then every remaining handler.
func New(sh *shape.Shape, initial handler.Grid, alloc handler.StateAllocator, built []handler.Handler) (*Set, bool) {
	seen := map[string]bool{}
	var deduped []handler.Handler
	for _, h := range built {
		if seen[h.IDStr()] {
			continue
		}
		seen[h.IDStr()] = true
		deduped = append(deduped, h)
	}

	excl := exclusions.New(sh.NumCells)

	registerFirst, rest := splitByInitOrder(deduped)
	for _, h := range registerFirst {
		if !h.Initialize(initial, excl, sh, alloc) {
			return nil, false
		}
	}
	for _, h := range rest {
		if !h.Initialize(initial, excl, sh, alloc) {
			return nil, false
		}
	}

	s := &Set{Handlers: append(registerFirst, rest...), Shape: sh, Excl: excl}
	return s, true
}

func splitByInitOrder(hs []handler.Handler) (first, rest []handler.Handler) {
	for _, h := range hs {
		if isExclusionRegistrar(h) {
			first = append(first, h)
		} else {
			rest = append(rest, h)
		}
	}
	return first, rest
}

// isExclusionRegistrar identifies handlers whose Initialize only calls
// excl.AddAllDifferent/AddMutualExclusion and never reads back from excl.
// A type switch is simpler than an interface here and just as exhaustive,
// given a closed, known handler set.
func isExclusionRegistrar(h handler.Handler) bool {
	switch h.(type) {
	case *handlers.AllDifferent, *handlers.BinaryConstraint, *handlers.BinaryPairwise:
		return true
	default:
		return false
	}
}

// getAllOfType returns every handler of the concrete type T in s, used by
// optimizer passes that look for e.g. every AllDifferent house before
// deciding where a cage's complement lives.
func getAllOfType[T handler.Handler](s *Set) []T {
	var out []T
	for _, h := range s.Handlers {
		if t, ok := h.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Optimizer rewrites a Set before the engine runs: synthesizing
// derived constraints (innie/outie sums, gap fills) and collapsing
// handlers proven trivially true/false, so the search never wastes cycles
// on propagation the construction phase could settle once and for all.
type Optimizer struct {
	sh   *shape.Shape
	excl *exclusions.Set
}

// NewOptimizer builds an optimizer bound to one puzzle's shape/exclusions.
func NewOptimizer(sh *shape.Shape, excl *exclusions.Set) *Optimizer {
	return &Optimizer{sh: sh, excl: excl}
}

// Run applies every optimization pass in sequence against the
// already-given-applied grid g, returning false if any pass proves the
// puzzle infeasible outright.
func (o *Optimizer) Run(s *Set, g handler.Grid) bool {
	if !o.synthesizeInnieOutie(s) {
		return false
	}
	if !o.collapseTrivialCages(s) {
		return false
	}
	if !o.sumIntersection(s) {
		return false
	}
	if !o.gapFill(s) {
		return false
	}
	if !o.fullGridRequiredValues(s) {
		return false
	}
	if !o.knownRequiredValues(s, g) {
		return false
	}
	return true
}

// synthesizeInnieOutie finds Sum handlers whose cell set is a subset of a
// single AllDifferent house and adds the complement cells as a derived Sum
// handler (innie) or, symmetrically, a house's uncovered remainder against
// an enclosing region (outie) — the classic innie/outie sums. This lets the
// engine propagate the much smaller complement directly instead of
// rediscovering the relationship through search.
func (o *Optimizer) synthesizeInnieOutie(s *Set) bool {
	houses := getAllOfType[*handlers.AllDifferent](s)
	sums := getAllOfType[*handlers.Sum](s)

	houseSum := o.sh.NumValues * (o.sh.NumValues + 1) / 2

	var derived []handler.Handler
	for _, house := range houses {
		if len(house.Cells()) != o.sh.NumValues {
			continue // not a full house; complement accounting doesn't apply
		}
		houseCellSet := toSet(house.Cells())
		for _, sum := range sums {
			sumTarget, plain := sum.TargetIfPlainCage()
			if !plain {
				continue
			}
			inside, outside := splitBySet(sum.Cells(), houseCellSet)
			if len(inside) == 0 || len(outside) != 0 {
				continue
			}
			complement := setMinus(house.Cells(), houseCellSet, inside)
			if len(complement) == 0 || len(complement) > o.sh.NumValues {
				continue
			}
			target := houseSum - sumTarget
			derived = append(derived, handlers.NewCage(target, complement))
		}
	}
	s.Handlers = append(s.Handlers, derived...)
	return true
}

// collapseTrivialCages replaces a Sum handler whose target equals the
// minimum or maximum possible sum of its own cells' full domain with a
// True handler once that's already guaranteed by AllDifferent, or a False
// handler when the target is outright unreachable.
func (o *Optimizer) collapseTrivialCages(s *Set) bool {
	n := o.sh.NumValues
	fullMin := func(k int) int { return k * (k + 1) / 2 }
	fullMax := func(k int) int {
		sum := 0
		for v := n; v > n-k; v-- {
			sum += v
		}
		return sum
	}

	for i, h := range s.Handlers {
		sum, ok := h.(*handlers.Sum)
		if !ok {
			continue
		}
		target, plain := sum.TargetIfPlainCage()
		if !plain {
			continue
		}
		k := len(sum.Cells())
		if k == 0 || k > n {
			continue
		}
		// The min/max bounds below assume distinct values: a little-killer
		// style sum whose cells can repeat is out of scope for this pass.
		if !o.excl.AreMutuallyExclusive(sum.Cells()) {
			continue
		}
		if target < fullMin(k) || target > fullMax(k) {
			s.Handlers[i] = handlers.NewFalse(sum.Cells())
			return false
		}
		if k == n && target == fullMax(k) {
			// A cage spanning an entire house whose target already equals the
			// house's only possible sum is redundant once AllDifferent runs;
			// collapsed to True so the engine skips its propagation pass.
			s.Handlers[i] = handlers.NewTrue(sum.Cells())
		}
	}
	return true
}

// sumIntersection detects plain-cage Sum handlers (including ones
// synthesized by synthesizeInnieOutie) that watch the exact same cell set
// but claim different targets — no assignment can satisfy both, so the
// whole group collapses to False.
func (o *Optimizer) sumIntersection(s *Set) bool {
	type claim struct {
		idx    int
		target int
	}
	byCells := map[string][]claim{}
	for i, h := range s.Handlers {
		sum, ok := h.(*handlers.Sum)
		if !ok {
			continue
		}
		target, plain := sum.TargetIfPlainCage()
		if !plain {
			continue
		}
		byCells[cellsKey(sum.Cells())] = append(byCells[cellsKey(sum.Cells())], claim{idx: i, target: target})
	}

	feasible := true
	for _, claims := range byCells {
		if len(claims) < 2 {
			continue
		}
		first := claims[0].target
		conflict := false
		for _, c := range claims[1:] {
			if c.target != first {
				conflict = true
				break
			}
		}
		if !conflict {
			continue
		}
		cells := s.Handlers[claims[0].idx].Cells()
		for _, c := range claims {
			s.Handlers[c.idx] = handlers.NewFalse(cells)
		}
		feasible = false
	}
	return feasible
}

// gapFill synthesizes a Sum over whatever cells the puzzle's plain cages
// leave uncovered, targeting the total grid sum minus what's already
// covered. Only applies on grids with a canonical house
// axis (one of rows/cols equals numValues, so the total is well-defined);
// on a grid without one it refuses to synthesize anything.
func (o *Optimizer) gapFill(s *Set) bool {
	n := o.sh.NumValues
	houseSum := n * (n + 1) / 2
	var totalGridSum int
	switch {
	case o.sh.NumCols == n:
		totalGridSum = o.sh.NumRows * houseSum
	case o.sh.NumRows == n:
		totalGridSum = o.sh.NumCols * houseSum
	default:
		return true
	}

	covered := map[int]bool{}
	coveredSum := 0
	for _, h := range s.Handlers {
		sum, ok := h.(*handlers.Sum)
		if !ok {
			continue
		}
		target, plain := sum.TargetIfPlainCage()
		if !plain {
			continue
		}
		overlaps := false
		for _, c := range sum.Cells() {
			if covered[c] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue // already accounted for via another cage; don't double-count
		}
		for _, c := range sum.Cells() {
			covered[c] = true
		}
		coveredSum += target
	}

	var remaining []int
	for c := 0; c < o.sh.NumCells; c++ {
		if !covered[c] {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 || len(remaining) >= n {
		return true // nothing left to fill, or too much left to call it "the gap"
	}
	s.Handlers = append(s.Handlers, handlers.NewCage(totalGridSum-coveredSum, remaining))
	return true
}

// fullGridRequiredValues checks, for rectangular (non-square) grids whose
// row/column lengths differ from numValues, that every value still has
// enough potential hosts across the whole grid — a degenerate case the
// square-grid assumption baked into per-house hidden singles can miss
//.
func (o *Optimizer) fullGridRequiredValues(s *Set) bool {
	if o.sh.NumRows == o.sh.NumCols {
		return true // square grids are covered by per-house hidden singles already
	}
	n := o.sh.NumValues
	if o.sh.NumCols != n && o.sh.NumRows != n {
		return true // neither axis is a full house: no canonical multiset to pin
	}
	if o.sh.NumCells%n != 0 {
		return true // doesn't divide evenly: refuse to synthesize rather than guess
	}
	all := make([]int, o.sh.NumCells)
	for i := range all {
		all[i] = i
	}
	s.Handlers = append(s.Handlers, handlers.NewFullGridRequiredValues(all, o.sh.NumCells/n))
	return true
}

// knownRequiredValues pins down where required values can go: for each
// full house, partition its cells into the plain cages that lie entirely
// inside it plus any leftover singleton cells, then for each value check
// which of those groups can still possibly hold it (a cage's check is
// exact up to exhaustiveBound unfixed cells, bailing toward "assume
// reachable" above that, so an oversized house costs nothing).
// A group proven unable to hold v has v stripped from all its cells; if
// exactly one single-cell group remains able to hold v, that cell is
// forced to v.
func (o *Optimizer) knownRequiredValues(s *Set, g handler.Grid) bool {
	const groupCountCap = 6
	houses := getAllOfType[*handlers.AllDifferent](s)
	sums := getAllOfType[*handlers.Sum](s)
	// Sums synthesized by earlier passes are otherwise only initialized
	// after Run returns; CellsThatCanHold needs each Sum's initialized state.
	for _, sum := range sums {
		sum.Initialize(g, o.excl, o.sh, nil)
	}

	for _, house := range houses {
		if len(house.Cells()) != o.sh.NumValues {
			continue
		}
		houseSet := toSet(house.Cells())

		var groups [][]int
		var groupSum []*handlers.Sum // parallel to groups; nil entries are leftover singleton cells
		covered := map[int]bool{}
		for _, sum := range sums {
			_, plain := sum.TargetIfPlainCage()
			if !plain {
				continue
			}
			inside, outside := splitBySet(sum.Cells(), houseSet)
			if len(inside) == 0 || len(outside) != 0 {
				continue
			}
			groups = append(groups, inside)
			groupSum = append(groupSum, sum)
			for _, c := range inside {
				covered[c] = true
			}
		}
		for _, c := range house.Cells() {
			if !covered[c] {
				groups = append(groups, []int{c})
				groupSum = append(groupSum, nil)
			}
		}
		if len(groups) < 2 || len(groups) > groupCountCap {
			continue // nothing to gain from one group, or too many to bother enumerating
		}

		for v := 1; v <= o.sh.NumValues; v++ {
			hostCount, hostIdx := 0, -1
			for gi, grp := range groups {
				if groupCanHoldValue(g, grp, groupSum[gi], v) {
					hostCount++
					hostIdx = gi
					continue
				}
				for _, c := range grp {
					m := g.Get(c)
					if !m.Has(v) {
						continue
					}
					if !g.Set(c, m.Without(v)) {
						return false
					}
				}
			}
			if hostCount == 0 {
				return false
			}
			if hostCount == 1 && len(groups[hostIdx]) == 1 {
				cell := groups[hostIdx][0]
				if !g.Set(cell, lookup.Bit(v)) {
					return false
				}
			}
		}
	}
	return true
}

// groupCanHoldValue reports whether v can land somewhere in group, given
// the current grid: a leftover singleton just checks its own mask; a cage
// group delegates to the owning Sum's exact-assignment check.
func groupCanHoldValue(g handler.Grid, group []int, sum *handlers.Sum, v int) bool {
	if sum == nil {
		return g.Get(group[0]).Has(v)
	}
	hosts := sum.CellsThatCanHold(g, v)
	if hosts == nil {
		return true // too large to verify exactly; assume reachable
	}
	return len(hosts) > 0
}

// cellsKey renders a (already-sorted) cell list as a map key, used to
// detect two handlers watching the identical cell set.
func cellsKey(cells []int) string {
	return fmt.Sprint(cells)
}

func toSet(cells []int) map[int]bool {
	m := make(map[int]bool, len(cells))
	for _, c := range cells {
		m[c] = true
	}
	return m
}

func splitBySet(cells []int, set map[int]bool) (inside, outside []int) {
	for _, c := range cells {
		if set[c] {
			inside = append(inside, c)
		} else {
			outside = append(outside, c)
		}
	}
	return inside, outside
}

func setMinus(houseCells []int, houseSet map[int]bool, used []int) []int {
	usedSet := toSet(used)
	var out []int
	for _, c := range houseCells {
		if !usedSet[c] {
			out = append(out, c)
		}
	}
	return out
}

