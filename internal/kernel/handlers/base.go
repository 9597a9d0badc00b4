// Package handlers implements the constraint propagators: the
// polymorphic units that prune the shared candidate grid toward a fixed
// point. Houses, cages, arrows, lines, edge clues and automaton lines
// all reduce to the same contract — watch a cell list, prune masks,
// report wipeouts.
package handlers

import (
	"fmt"
	"sort"
)

// base carries the common Cells()/IDStr() bookkeeping every handler needs.
type base struct {
	cells []int
	id    string
}

func newBase(kind string, cells []int, params ...interface{}) base {
	sorted := append([]int(nil), cells...)
	sort.Ints(sorted)
	return base{cells: sorted, id: fmt.Sprintf("%s:%v:%v", kind, sorted, params)}
}

func (b base) Cells() []int  { return b.cells }
func (b base) IDStr() string { return b.id }

