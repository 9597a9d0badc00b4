package handlers

import (
	"sort"

	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// exhaustiveBound caps the number of unfixed cells the exact assignment
// search will enumerate. Above this, Sum falls back to range and
// exclusion-band propagation only — sound but weaker.
const exhaustiveBound = 6

// CoeffCell is one (coefficient, cell) pair in a Sum handler's input.
type CoeffCell struct {
	Coeff int
	Cell  int
}

// coeffGroup holds the cells sharing one coefficient,
// further partitioned into maximal mutually-exclusive exclusion groups.
type coeffGroup struct {
	coeff           int
	cells           []int
	exclusionGroups [][]int
}

// Sum is the principal handler: cages, arrows (reformulated as a sum
// equation), little-killers, X/V, and coefficient sums all reduce to "a
// weighted sum of these cells equals a target", with arbitrary signed
// coefficients over an arbitrary cell list.
type Sum struct {
	base
	target    int
	groups    []coeffGroup
	numValues int
	tables    *lookup.Tables

	onlyAbsUnit bool // every |coeff| == 1
	isCage      bool // single unit-coefficient group, single exclusion group covering every cell
	hasNegative bool
}

// NewSum builds a Sum handler for target == Σ coeff*value over parts.
func NewSum(target int, parts []CoeffCell) *Sum {
	cells := make([]int, len(parts))
	for i, p := range parts {
		cells[i] = p.Cell
	}
	byCoeff := map[int][]int{}
	order := []int{}
	for _, p := range parts {
		if _, seen := byCoeff[p.Coeff]; !seen {
			order = append(order, p.Coeff)
		}
		byCoeff[p.Coeff] = append(byCoeff[p.Coeff], p.Cell)
	}
	// Sort coefficient groups by descending |coeff| so restriction loops
	// can terminate early on the tightest band first.
	sort.Slice(order, func(i, j int) bool {
		ai, aj := order[i], order[j]
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})

	s := &Sum{base: newBase("sum", cells, target, parts), target: target}
	s.onlyAbsUnit = true
	for _, c := range order {
		if c != 1 && c != -1 {
			s.onlyAbsUnit = false
		}
		if c < 0 {
			s.hasNegative = true
		}
		s.groups = append(s.groups, coeffGroup{coeff: c, cells: byCoeff[c]})
	}
	if len(s.groups) == 1 && (s.groups[0].coeff == 1 || s.groups[0].coeff == -1) {
		s.isCage = true // refined once the single exclusion group is known, see Initialize
	}
	return s
}

// TargetIfPlainCage reports h's target and true when h is a plain
// unit-coefficient cage (every cell contributes +1) — the shape the
// handlerset Optimizer knows how to synthesize a complement for.
func (h *Sum) TargetIfPlainCage() (int, bool) {
	if len(h.groups) == 1 && h.groups[0].coeff == 1 {
		return h.target, true
	}
	return 0, false
}

// NewCage is the common case: a sum with all coefficients +1. Cage
// distinctness is not enforced here — it comes from the exclusion graph,
// which the constraint builder populates by pairing a killer cage with an
// AllDifferent over the same cells. Little-killers, sum lines and gap
// fills reuse NewCage without one, since their cells may repeat.
func NewCage(target int, cells []int) *Sum {
	parts := make([]CoeffCell, len(cells))
	for i, c := range cells {
		parts[i] = CoeffCell{Coeff: 1, Cell: c}
	}
	return NewSum(target, parts)
}

func (h *Sum) Initialize(_ handler.Grid, excl *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	h.tables = lookup.For(sh.NumValues)

	for gi := range h.groups {
		h.groups[gi].exclusionGroups = partitionIntoCliques(excl, h.groups[gi].cells)
	}
	if h.isCage && len(h.groups) == 1 && len(h.groups[0].exclusionGroups) != 1 {
		h.isCage = false
	}
	return true
}

// partitionIntoCliques greedily assigns each cell to the first existing
// group it is mutually exclusive with every member of, else starts a new
// group — a valid (if not globally maximum) clique partition, which is
// all Sum's exclusion-aware reasoning requires.
func partitionIntoCliques(excl *exclusions.Set, cells []int) [][]int {
	var groups [][]int
outer:
	for _, c := range cells {
		for gi, g := range groups {
			fitsAll := true
			for _, member := range g {
				if !excl.IsMutuallyExclusive(c, member) {
					fitsAll = false
					break
				}
			}
			if fitsAll {
				groups[gi] = append(groups[gi], c)
				continue outer
			}
		}
		groups = append(groups, []int{c})
	}
	return groups
}

func (h *Sum) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	// Range summary.
	totalMin, totalMax, fixedSum, numUnfixed := 0, 0, 0, 0
	for _, grp := range h.groups {
		for _, c := range grp.cells {
			info := h.tables.Range(g.Get(c))
			if info.IsEmpty {
				return false
			}
			lo, hi := grp.coeff*info.Min, grp.coeff*info.Max
			if lo > hi {
				lo, hi = hi, lo
			}
			if info.IsFixed {
				fixedSum += grp.coeff * info.FixedValue
				totalMin += grp.coeff * info.FixedValue
				totalMax += grp.coeff * info.FixedValue
			} else {
				numUnfixed++
				totalMin += lo
				totalMax += hi
			}
		}
	}
	if h.target < totalMin || h.target > totalMax {
		return false
	}
	if numUnfixed == 0 {
		if fixedSum != h.target {
			return false
		}
		return true
	}

	// For a small number of remaining cells, solve exactly via bounded
	// exhaustive assignment respecting exclusion-group distinctness —
	// sound and complete for any coefficients.
	if numUnfixed <= exhaustiveBound {
		ok, survive := h.exactAssignmentSurvivors(g)
		if !ok {
			return false
		}
		for cell, mask := range survive {
			cur := g.Get(cell)
			if !handler.Prune(g, acc, cell, cur.Intersect(mask)) {
				return false
			}
		}
		return true
	}

	// Range propagation for larger cages.
	if !h.propagateRanges(g, acc, totalMin, totalMax, fixedSum) {
		return false
	}

	// Coefficient-aware seen-min/seen-max banding per exclusion
	// group, tighter than plain range propagation when cells inside a
	// group can't repeat values.
	if !h.propagateExclusionBands(g, acc) {
		return false
	}

	for _, c := range h.cells {
		if g.Get(c).IsEmpty() {
			return false
		}
	}
	return true
}

// CellsThatCanHold reports which of h's cells can take value v in some
// assignment consistent with h's target, current masks, and exclusion-
// group distinctness. Returns nil (not an empty map) when h has too many
// unfixed cells to verify exactly — the caller should then treat h as
// "can't tell, assume reachable" rather than as proof v is excluded.
// Used by the handlerset Optimizer's "known required values" pass
// to check whether a cage could possibly supply v to an enclosing house.
func (h *Sum) CellsThatCanHold(g handler.Grid, v int) map[int]bool {
	numUnfixed := 0
	for _, c := range h.cells {
		if _, ok := g.Get(c).Singleton(); !ok {
			numUnfixed++
		}
	}
	if numUnfixed > exhaustiveBound {
		return nil
	}
	ok, survive := h.exactAssignmentSurvivors(g)
	if !ok {
		return map[int]bool{}
	}
	out := map[int]bool{}
	for cell, mask := range survive {
		if mask.Has(v) {
			out[cell] = true
		}
	}
	return out
}

// sumCellSpec is one unfixed cell in the exact-assignment search: its
// coefficient, current mask, and which exclusion group it belongs to for
// distinctness checks.
type sumCellSpec struct {
	cell     int
	coeff    int
	mask     lookup.Mask
	groupKey int
}

// exactAssignmentSurvivors enumerates every value assignment to the
// unfixed cells (respecting per-exclusion-group distinctness) that sums
// (with coefficients) to h.target, returning for each unfixed cell the
// union of values it took across all surviving assignments.
func (h *Sum) exactAssignmentSurvivors(g handler.Grid) (bool, map[int]lookup.Mask) {
	var unfixed []sumCellSpec
	fixedSum := 0
	groupKeyBase := 0
	usedByGroup := map[int]lookup.Mask{} // values already committed to fixed cells per group

	for _, grp := range h.groups {
		for gi, excl := range grp.exclusionGroups {
			key := groupKeyBase + gi
			for _, c := range excl {
				m := g.Get(c)
				if v, ok := m.Singleton(); ok {
					fixedSum += grp.coeff * v
					usedByGroup[key] = usedByGroup[key].With(v)
					continue
				}
				unfixed = append(unfixed, sumCellSpec{cell: c, coeff: grp.coeff, mask: m, groupKey: key})
			}
		}
		groupKeyBase += len(grp.exclusionGroups) + 1
	}

	need := h.target - fixedSum
	survive := map[int]lookup.Mask{}
	found := false

	usedNow := map[int]lookup.Mask{}
	for k, v := range usedByGroup {
		usedNow[k] = v
	}

	var assignment []int
	var recurse func(idx, remaining int)
	recurse = func(idx, remaining int) {
		if idx == len(unfixed) {
			if remaining == 0 {
				found = true
				for i, spec := range unfixed {
					survive[spec.cell] = survive[spec.cell].With(assignment[i])
				}
			}
			return
		}
		spec := unfixed[idx]
		for _, v := range spec.mask.ToSlice() {
			if usedNow[spec.groupKey].Has(v) {
				continue
			}
			contribution := spec.coeff * v
			// Bound: can the remaining cells still reach the target?
			lo, hi := h.remainingBound(unfixed[idx+1:], usedNow, spec.groupKey, v)
			if remaining-contribution < lo || remaining-contribution > hi {
				continue
			}
			usedNow[spec.groupKey] = usedNow[spec.groupKey].With(v)
			assignment = append(assignment, v)
			recurse(idx+1, remaining-contribution)
			assignment = assignment[:len(assignment)-1]
			usedNow[spec.groupKey] = usedNow[spec.groupKey].Without(v)
		}
	}
	recurse(0, need)

	return found, survive
}

// remainingBound computes a cheap [lo,hi] bound on what the cells after
// idx can still contribute, used to prune the exact-assignment search.
func (h *Sum) remainingBound(rest []sumCellSpec, usedNow map[int]lookup.Mask, justUsedGroup int, justUsedValue int) (int, int) {
	lo, hi := 0, 0
	for _, spec := range rest {
		mask := spec.mask.Subtract(usedNow[spec.groupKey])
		if spec.groupKey == justUsedGroup {
			mask = mask.Without(justUsedValue)
		}
		if mask.IsEmpty() {
			return 1, -1 // impossible: force pruning
		}
		loV, hiV := mask.Lowest(), mask.Highest()
		a, b := spec.coeff*loV, spec.coeff*hiV
		if a > b {
			a, b = b, a
		}
		lo += a
		hi += b
	}
	return lo, hi
}

// propagateRanges trims each unfixed cell's mask to the values consistent
// with the other cells' min/max ranges.
func (h *Sum) propagateRanges(g handler.Grid, acc handler.Accumulator, totalMin, totalMax, fixedSum int) bool {
	for _, grp := range h.groups {
		for _, c := range grp.cells {
			mask := g.Get(c)
			if _, ok := mask.Singleton(); ok {
				continue
			}
			info := h.tables.Range(mask)
			lo, hi := grp.coeff*info.Min, grp.coeff*info.Max
			if lo > hi {
				lo, hi = hi, lo
			}
			// This cell's contribution must land in [target-restMax, target-restMin],
			// where rest = every other cell's min/max excluding this one's own range.
			ctrLo, ctrHi := h.target-(totalMax-lo), h.target-(totalMin-hi)

			var allowed lookup.Mask
			for _, v := range mask.ToSlice() {
				contribution := grp.coeff * v
				if contribution >= ctrLo && contribution <= ctrHi {
					allowed = allowed.With(v)
				}
			}
			if !handler.Prune(g, acc, c, allowed) {
				return false
			}
		}
	}
	return true
}

// propagateExclusionBands restricts each exclusion group's unfixed cells
// to the values compatible with the group's required share of the target:
// the ranges of every cell outside the group bound what the group must
// contribute, and within the group the greedy smallest and largest
// distinct packings of the remaining k-1 cells bound the group sum
// achievable alongside each candidate value.
func (h *Sum) propagateExclusionBands(g handler.Grid, acc handler.Accumulator) bool {
	for gi, grp := range h.groups {
		for _, exclGroup := range grp.exclusionGroups {
			k := len(exclGroup)
			if k < 2 {
				continue
			}
			union := lookup.Mask(0)
			for _, c := range exclGroup {
				union |= g.Get(c)
			}
			if union.Count() < k {
				return false
			}

			restMin, restMax := 0, 0
			for gj, other := range h.groups {
				for _, c := range other.cells {
					if gj == gi && containsCell(exclGroup, c) {
						continue
					}
					info := h.tables.Range(g.Get(c))
					lo, hi := other.coeff*info.Min, other.coeff*info.Max
					if lo > hi {
						lo, hi = hi, lo
					}
					restMin += lo
					restMax += hi
				}
			}
			needLo, needHi := h.target-restMax, h.target-restMin

			for _, c := range exclGroup {
				mask := g.Get(c)
				if _, ok := mask.Singleton(); ok {
					continue
				}
				var allowed lookup.Mask
				for _, v := range mask.ToSlice() {
					others := union.Without(v)
					minRest := greedyDistinctSum(others, k-1, true)
					maxRest := greedyDistinctSum(others, k-1, false)
					if minRest < 0 {
						continue
					}
					lo, hi := grp.coeff*(v+minRest), grp.coeff*(v+maxRest)
					if lo > hi {
						lo, hi = hi, lo
					}
					if hi >= needLo && lo <= needHi {
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

func containsCell(cells []int, c int) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}

// greedyDistinctSum returns the sum of the k smallest (ascending=true) or
// largest (ascending=false) distinct values available in mask, or -1 if
// mask doesn't have k distinct values.
func greedyDistinctSum(mask lookup.Mask, k int, ascending bool) int {
	values := mask.ToSlice()
	if len(values) < k {
		return -1
	}
	sum := 0
	if ascending {
		for i := 0; i < k; i++ {
			sum += values[i]
		}
	} else {
		for i := len(values) - 1; i >= len(values)-k; i-- {
			sum += values[i]
		}
	}
	return sum
}

// rangeBound returns the [min,max] sum achievable across masks, used by
// handlers (Sandwich, Lunchbox) that need a quick feasibility check on an
// arbitrary cell segment without building a full Sum handler.
func rangeBound(tables *lookup.Tables, masks []lookup.Mask) (min, max int, ok bool) {
	for _, m := range masks {
		info := tables.Range(m)
		if info.IsEmpty {
			return 0, 0, false
		}
		min += info.Min
		max += info.Max
	}
	return min, max, true
}

// sumReachable reports whether masks (treated as distinct cells, pairwise
// all-different) can be assigned values summing exactly to target. Fixed
// cells are peeled off first, so a mostly-assigned long segment is still
// verified exactly; only the open remainder is subject to the
// exhaustiveBound bail-out.
func sumReachable(masks []lookup.Mask, target int) bool {
	var used lookup.Mask
	remaining := target
	var open []lookup.Mask
	for _, m := range masks {
		if v, ok := m.Singleton(); ok {
			if used.Has(v) {
				return false
			}
			used = used.With(v)
			remaining -= v
			continue
		}
		open = append(open, m)
	}
	if len(open) == 0 {
		return remaining == 0
	}
	if len(open) > exhaustiveBound {
		return true // too many open cells to verify exactly; treat as feasible
	}
	var recurse func(idx, rem int) bool
	recurse = func(idx, rem int) bool {
		if idx == len(open) {
			return rem == 0
		}
		for _, v := range open[idx].ToSlice() {
			if used.Has(v) || rem-v < 0 {
				continue
			}
			used = used.With(v)
			if recurse(idx+1, rem-v) {
				used = used.Without(v)
				return true
			}
			used = used.Without(v)
		}
		return false
	}
	return recurse(0, remaining)
}
