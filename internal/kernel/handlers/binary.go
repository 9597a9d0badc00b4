package handlers

import (
	"fmt"

	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Relation names a precompiled binary predicate, used as the cache key
// passed to lookup.Tables.ForBinaryKey.
type Relation struct {
	Key  string
	Pred func(a, b int) bool
	// MutuallyExclusive marks relations that also imply a != b, so the
	// builder can register the pair with CellExclusions (needed for
	// Sum's exclusion-group reasoning over cells linked only by such a
	// relation, e.g. anti-knight/king/consecutive).
	MutuallyExclusive bool
}

// Common relations, named so callers (the constraint-spec builder and the
// other handlers built atop BinaryConstraint) share one cache key per
// predicate shape instead of each minting their own.
var (
	RelLessThan = Relation{Key: "lt", Pred: func(a, b int) bool { return a < b }, MutuallyExclusive: true}
	RelEqual    = Relation{Key: "eq", Pred: func(a, b int) bool { return a == b }}
	RelNotEqual = Relation{Key: "neq", Pred: func(a, b int) bool { return a != b }, MutuallyExclusive: true}
)

// RelDifferBy returns the "|a-b| >= d" relation used by Whisper lines and
// other minimum-difference pair constraints (Lockout checks its end-cell
// gap inline instead).
func RelDifferBy(d int) Relation {
	pred := func(a, b int) bool {
		diff := a - b
		if diff < 0 {
			diff = -diff
		}
		return diff >= d
	}
	return Relation{
		Key:               fmt.Sprintf("differby%d", d),
		Pred:              pred,
		MutuallyExclusive: d > 0,
	}
}

// RelAny returns a relation that holds when ANY of the given binary
// predicates holds (used to combine e.g. "consecutive
// OR ratio 2" dot styles); kept generic so new dot flavors don't need a
// new handler.
func RelAny(key string, preds ...func(a, b int) bool) Relation {
	return Relation{
		Key: key,
		Pred: func(a, b int) bool {
			for _, p := range preds {
				if p(a, b) {
					return true
				}
			}
			return false
		},
	}
}

// RelNot inverts rel, the boolean "not" half of constraint composition
// (e.g. "these two cells are NOT a kropki pair").
func RelNot(rel Relation) Relation {
	return Relation{
		Key:  "not" + rel.Key,
		Pred: func(a, b int) bool { return !rel.Pred(a, b) },
	}
}

// RelAllOf holds only when every one of preds holds — the "and" half of
// boolean constraint composition, dual to RelAny's "or".
func RelAllOf(key string, preds ...func(a, b int) bool) Relation {
	return Relation{
		Key: key,
		Pred: func(a, b int) bool {
			for _, p := range preds {
				if !p(a, b) {
					return false
				}
			}
			return true
		},
	}
}

// RelXor holds when exactly one of a, b holds — the "xor" half of boolean
// constraint composition.
func RelXor(key string, a, b func(a, b int) bool) Relation {
	return Relation{
		Key:  key,
		Pred: func(x, y int) bool { return a(x, y) != b(x, y) },
	}
}

// BinaryConstraint enforces an arbitrary precompiled relation between two
// cells: grid[a] &= backward[grid[b]] and symmetrically.
type BinaryConstraint struct {
	base
	a, b     int
	relation Relation
	forward  []lookup.Mask
	backward []lookup.Mask
}

// NewBinaryConstraint builds a BinaryConstraint over the ordered pair
// (a, b) for relation rel (rel.Pred(x,y) meaning "a=x permits b=y").
func NewBinaryConstraint(a, b int, rel Relation) *BinaryConstraint {
	return &BinaryConstraint{base: newBase("binary", []int{a, b}, rel.Key, a, b), a: a, b: b, relation: rel}
}

func (h *BinaryConstraint) Initialize(_ handler.Grid, excl *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	tables := lookup.For(sh.NumValues)
	h.forward, h.backward = tables.ForBinaryKey(h.relation.Key, h.relation.Pred)
	if h.relation.MutuallyExclusive {
		excl.AddMutualExclusion(h.a, h.b)
	}
	return true
}

func (h *BinaryConstraint) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	ma, mb := g.Get(h.a), g.Get(h.b)

	var allowedForB lookup.Mask
	for _, v := range ma.ToSlice() {
		allowedForB |= h.forward[lookup.Bit(v)]
	}
	var allowedForA lookup.Mask
	for _, v := range mb.ToSlice() {
		allowedForA |= h.backward[lookup.Bit(v)]
	}

	if !handler.Prune(g, acc, h.b, mb.Intersect(allowedForB)) {
		return false
	}
	if !handler.Prune(g, acc, h.a, ma.Intersect(allowedForA)) {
		return false
	}
	return true
}

// BinaryPairwise applies a binary relation pairwise across every pair in
// a cell list — a thermometer/palindrome/whisper/renban-style
// line is one BinaryPairwise handler (or a chain of BinaryConstraint
// pairs; BinaryPairwise is the all-pairs generalization used when the
// relation must hold between every pair, not just consecutive ones).
type BinaryPairwise struct {
	base
	relation      Relation
	hiddenSingles bool // relation is equality-like: enables hidden-single detection
	numValues     int
	forward       []lookup.Mask
	backward      []lookup.Mask
}

// NewBinaryPairwise builds a handler enforcing rel between every pair of
// cells. hiddenSingles should be true for equality-like relations (e.g.
// palindrome mirroring), enabling the same hidden-single reasoning
// AllDifferent uses, generalized to "placement count across an
// equivalence class" instead of "across a house".
func NewBinaryPairwise(cells []int, rel Relation, hiddenSingles bool) *BinaryPairwise {
	return &BinaryPairwise{base: newBase("pairwise", cells, rel.Key, hiddenSingles), relation: rel, hiddenSingles: hiddenSingles}
}

func (h *BinaryPairwise) Initialize(_ handler.Grid, excl *exclusions.Set, sh *shape.Shape, _ handler.StateAllocator) bool {
	h.numValues = sh.NumValues
	tables := lookup.For(sh.NumValues)
	h.forward, h.backward = tables.ForBinaryKey(h.relation.Key, h.relation.Pred)
	if h.relation.MutuallyExclusive {
		excl.AddAllDifferent(h.cells)
	}
	return true
}

func (h *BinaryPairwise) EnforceConsistency(g handler.Grid, acc handler.Accumulator) bool {
	for i, a := range h.cells {
		for j, b := range h.cells {
			if i == j {
				continue
			}
			ma, mb := g.Get(a), g.Get(b)
			var allowedForB lookup.Mask
			for _, v := range ma.ToSlice() {
				allowedForB |= h.forward[lookup.Bit(v)]
			}
			if !handler.Prune(g, acc, b, mb.Intersect(allowedForB)) {
				return false
			}
		}
	}

	if h.hiddenSingles {
		var placementCount [17]int
		var placementCell [17]int
		for _, c := range h.cells {
			for _, v := range g.Get(c).ToSlice() {
				placementCount[v]++
				placementCell[v] = c
			}
		}
		for v := 1; v <= h.numValues; v++ {
			if placementCount[v] == 1 {
				if !handler.Prune(g, acc, placementCell[v], lookup.Bit(v)) {
					return false
				}
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
