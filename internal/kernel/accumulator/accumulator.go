// Package accumulator implements the handler dirty-queue: a
// duplicate-free queue of handlers whose watched cells changed,
// drained by the engine's propagation loop until empty or a handler
// reports a wipeout.
package accumulator

import (
	"sort"

	"sudokusolver/internal/kernel/handler"
)

// Accumulator is the propagation dirty-queue. Zero value is not usable;
// build with New or Build.
type Accumulator struct {
	priorityOrder []int   // handler indices, sorted by priority desc then original index asc
	cellWatchers  [][]int // per-cell list of handler indices watching it
	dirty         []bool
	dirtyCount    int
}

// New builds an Accumulator over numHandlers handlers, given the watcher
// list for every cell and each handler's propagation priority (higher
// runs first).
func New(numHandlers int, cellWatchers [][]int, priorities []int) *Accumulator {
	order := make([]int, numHandlers)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return priorities[order[i]] > priorities[order[j]]
	})
	return &Accumulator{
		priorityOrder: order,
		cellWatchers:  cellWatchers,
		dirty:         make([]bool, numHandlers),
	}
}

// Build derives an Accumulator directly from a handler list and the
// shared grid's cell count.
func Build(handlers []handler.Handler, numCells int) *Accumulator {
	cellWatchers := make([][]int, numCells)
	priorities := make([]int, len(handlers))
	for i, h := range handlers {
		if p, ok := h.(handler.Prioritized); ok {
			priorities[i] = p.Priority()
		}
		for _, c := range h.Cells() {
			cellWatchers[c] = append(cellWatchers[c], i)
		}
	}
	return New(len(handlers), cellWatchers, priorities)
}

// AddForCell marks every handler watching cell as dirty. Re-marking an
// already-dirty handler is a no-op, so the queue never holds duplicates.
func (a *Accumulator) AddForCell(cell int) {
	if cell < 0 || cell >= len(a.cellWatchers) {
		return
	}
	for _, h := range a.cellWatchers[cell] {
		if !a.dirty[h] {
			a.dirty[h] = true
			a.dirtyCount++
		}
	}
}

// HasAny reports whether any handler is pending.
func (a *Accumulator) HasAny() bool {
	return a.dirtyCount > 0
}

// Pop removes and returns the next dirty handler index in priority order
// (ties broken by lower handler index), or (-1, false) when empty.
func (a *Accumulator) Pop() (int, bool) {
	if a.dirtyCount == 0 {
		return -1, false
	}
	for _, h := range a.priorityOrder {
		if a.dirty[h] {
			a.dirty[h] = false
			a.dirtyCount--
			return h, true
		}
	}
	return -1, false
}

// Clear empties the queue, used on failure or checkpoint restore.
func (a *Accumulator) Clear() {
	for i := range a.dirty {
		a.dirty[i] = false
	}
	a.dirtyCount = 0
}

// MarkAll enqueues every handler, used to force a full initial pass.
func (a *Accumulator) MarkAll() {
	for _, h := range a.priorityOrder {
		if !a.dirty[h] {
			a.dirty[h] = true
			a.dirtyCount++
		}
	}
}
