// Package handler declares the shared contract every constraint
// propagator implements, decoupled from the concrete grid and engine
// types: own a cell list, prune a shared Mask grid, announce every
// mutation to the accumulator.
package handler

import (
	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Grid is the mutable shared state every handler prunes. The engine owns
// the concrete implementation; handlers receive it by reference for the
// duration of one propagation call and must not retain it.
type Grid interface {
	Get(cell int) lookup.Mask
	// Set stores newMask for cell and reports whether the cell still has at
	// least one candidate (false signals a wipeout). Callers are
	// responsible for telling the Accumulator when a cell actually changed.
	Set(cell int, newMask lookup.Mask) bool
	NumCells() int
}

// Accumulator is the dirty-queue handlers notify when they mutate a cell,
// so every other handler watching that cell re-runs.
type Accumulator interface {
	AddForCell(cell int)
}

// StateAllocator hands out scratch buffers sized once at initialization,
// so propagation never allocates on the hot path.
type StateAllocator interface {
	AllocMasks(n int) []lookup.Mask
	AllocInts(n int) []int
}

// Handler is the common contract every propagator implements.
type Handler interface {
	// Cells returns the sorted, unique cell list this handler watches.
	Cells() []int
	// IDStr identifies this handler for deduplication and diagnostics;
	// two handlers with the same IDStr are considered identical.
	IDStr() string
	// Initialize sets up internal tables against the shared shape,
	// exclusion graph, and scratch allocator, optionally further
	// constraining initialGrid (e.g. applying givens). Returns false if
	// the handler is already infeasible and should abort construction.
	Initialize(initialGrid Grid, excl *exclusions.Set, sh *shape.Shape, alloc StateAllocator) bool
	// EnforceConsistency prunes candidates to this handler's semantics,
	// calling acc.AddForCell for every cell it mutates. Returns false iff
	// a wipeout was produced.
	EnforceConsistency(g Grid, acc Accumulator) bool
}

// Prioritized is implemented by handlers that want to run before their
// peers in each propagation pass.
type Prioritized interface {
	Priority() int
}

// Finder is a custom candidate-branching proposal a handler can nominate
// to the selector: a (value, cell-list) plan, scored so the
// selector can choose among competing finders. The nominated value MUST
// be required to appear in one of the listed cells — the engine treats
// "value in cells[0], or cells[1], or …" as an exhaustive case split.
type Finder func(g Grid) (score int, value int, cells []int, ok bool)

// CandidateFinderProvider is implemented by handlers exposing one or more
// custom candidate finders.
type CandidateFinderProvider interface {
	CandidateFinders() []Finder
}

// Prune applies newMask to cell, notifying acc only if the mask actually
// changed, and reports whether the result is non-wipeout. Shared by every
// handler's EnforceConsistency to keep the accumulator-notification
// discipline in one place.
func Prune(g Grid, acc Accumulator, cell int, newMask lookup.Mask) bool {
	old := g.Get(cell)
	if newMask == old {
		return true
	}
	ok := g.Set(cell, newMask)
	acc.AddForCell(cell)
	return ok
}
