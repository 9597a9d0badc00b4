// Package engine drives constraint propagation to a fixed point and
// performs trail-based backtracking search over the remaining
// candidates: a propagate-then-guess loop over an arbitrary
// handler-driven CSP on any grid shape.
package engine

import (
	"context"
	"math/rand"

	"sudokusolver/internal/kernel/accumulator"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/handlerset"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/selector"
	"sudokusolver/internal/kernel/shape"
)

// Grid is the engine's concrete handler.Grid: a flat Mask slice plus the
// sparse (cell, previousMask) trail frames backtracking needs to undo a
// guess.
type Grid struct {
	masks []lookup.Mask
	trail []trailEntry
	marks []int // stack of trail lengths at each pushed checkpoint
}

type trailEntry struct {
	cell int
	prev lookup.Mask
}

// NewGrid builds a grid with every cell set to the full candidate mask,
// sized for sh.
func NewGrid(sh *shape.Shape) *Grid {
	masks := make([]lookup.Mask, sh.NumCells)
	full := lookup.Full(sh.NumValues)
	for i := range masks {
		masks[i] = full
	}
	return &Grid{masks: masks}
}

// NewGridFromMasks builds a grid seeded from an existing mask snapshot
// (e.g. Grid.Clone's output), used to run a second, independent search
// over a copy of another grid's state without disturbing it.
func NewGridFromMasks(masks []lookup.Mask) *Grid {
	g := &Grid{masks: make([]lookup.Mask, len(masks))}
	copy(g.masks, masks)
	return g
}

func (g *Grid) Get(cell int) lookup.Mask { return g.masks[cell] }

func (g *Grid) Set(cell int, newMask lookup.Mask) bool {
	g.trail = append(g.trail, trailEntry{cell: cell, prev: g.masks[cell]})
	g.masks[cell] = newMask
	return !newMask.IsEmpty()
}

func (g *Grid) NumCells() int { return len(g.masks) }

// Mark pushes a checkpoint the engine can later Undo back to, used when
// descending into a guess.
func (g *Grid) Mark() {
	g.marks = append(g.marks, len(g.trail))
}

// Undo rewinds to the most recent Mark, restoring every cell the trail
// recorded since then.
func (g *Grid) Undo() {
	n := len(g.marks)
	mark := g.marks[n-1]
	g.marks = g.marks[:n-1]
	for i := len(g.trail) - 1; i >= mark; i-- {
		e := g.trail[i]
		g.masks[e.cell] = e.prev
	}
	g.trail = g.trail[:mark]
}

// Clone snapshots the grid's current candidate state (used when a caller
// needs a grid to survive past Undo, e.g. recording a found solution).
func (g *Grid) Clone() []lookup.Mask {
	out := make([]lookup.Mask, len(g.masks))
	copy(out, g.masks)
	return out
}

// scratchAllocator is the handler.StateAllocator every handler's
// Initialize call receives; scratch buffers are allocated once up front
// and never touched again on the propagation hot path.
type scratchAllocator struct{}

func (scratchAllocator) AllocMasks(n int) []lookup.Mask { return make([]lookup.Mask, n) }
func (scratchAllocator) AllocInts(n int) []int          { return make([]int, n) }

// NewScratchAllocator builds the StateAllocator every handler.Initialize
// call receives.
func NewScratchAllocator() handler.StateAllocator { return scratchAllocator{} }

// SearchMode selects the traversal strategy.
type SearchMode int

const (
	ModeFirstSolution SearchMode = iota
	ModeNthSolution
	ModeCountSolutions
	ModeEstimatedCount
	ModeAllPossibilities
	ModeValidateLayout
)

// Progress is emitted periodically during search so a caller can
// show incremental feedback on long solves.
type Progress struct {
	Guesses        int
	Backtracks     int
	SolutionsFound int
	Done           bool
	// ProgressRatio is the estimated fraction of the search tree explored
	// so far, accumulated from a running sum of ∏ (1/candidateCount_i)
	// over every branch fully backtracked out of. It is
	// non-decreasing within one solve and forced to 1.0 once the search
	// completes without being aborted.
	ProgressRatio float64
}

// Engine owns one puzzle's handler set and drives propagation/search.
type Engine struct {
	Set  *handlerset.Set
	Grid *Grid
	acc  *accumulator.Accumulator
	sel  *selector.Selector

	guesses        int
	backtracks     int
	solutionsFound int
	progressRatio  float64

	ProgressEvery    int // emit a Progress every N guesses; 0 disables
	onProgress       func(Progress)
	solutionCallback func(*Grid) bool // return false to stop search early

	aborted bool

	// HandlerCount records len(Set.Handlers) at build time when the caller
	// requested construction diagnostics.
	HandlerCount int

	// MaxGuesses aborts the search once e.guesses reaches it, 0 disables
	// the cap. Set by a caller that wants to bound a single search's cost
	// independent of ctx cancellation (e.g. a per-request iteration limit).
	MaxGuesses int
}

// SetMaxGuesses installs a guess-count cap checked alongside ctx
// cancellation.
func (e *Engine) SetMaxGuesses(n int) { e.MaxGuesses = n }

// New builds an engine over a constructed handler set and the grid
// handler Initialize calls already ran against (so any givens those calls
// applied are preserved), running the first propagation pass to a fixed
// point.
func New(s *handlerset.Set, g *Grid) (*Engine, bool) {
	e := &Engine{Set: s, Grid: g, acc: accumulator.Build(s.Handlers, s.Shape.NumCells)}
	e.sel = selector.New(s.Handlers, s.Shape)
	e.acc.MarkAll()
	if !e.propagate() {
		return e, false
	}
	return e, true
}

// SetProgressCallback installs a callback invoked every ProgressEvery
// guesses.
func (e *Engine) SetProgressCallback(every int, cb func(Progress)) {
	e.ProgressEvery = every
	e.onProgress = cb
}

// Terminate requests the in-flight search stop as soon as possible,
// checked between guesses.
func (e *Engine) Terminate() { e.aborted = true }

// SetStepGuide installs a one-shot list of (cell, value) choices the
// selector must follow before falling back to its own heuristic, used by
// nthStep to walk an externally-dictated
// solving path.
func (e *Engine) SetStepGuide(guide []selector.StepGuide) {
	e.sel.Guide = guide
}

// ChooseStep asks the selector for its preferred next branch and returns
// a single (cell, value) pick — the first of its ordered candidates —
// without consuming a guess counter or recursing into search, for callers
// that drive the engine one forced guess at a time.
func (e *Engine) ChooseStep() (cell, value int, ok bool) {
	c, mask, found := e.sel.Choose(e.Grid)
	if !found {
		return 0, 0, false
	}
	values := e.sel.OrderValues(mask)
	return c, values[0], true
}

// Step applies one forced guess directly to the live grid via Mark/
// Prune/propagate, without recursing into search. The
// caller is responsible for recording enough state beforehand (Grid.Clone,
// ScoresSnapshot) to undo it later; Step itself never unwinds on failure
// so a caller can inspect the contradiction it produced.
func (e *Engine) Step(cell, value int) bool {
	e.Grid.Mark()
	ok := handler.Prune(e.Grid, e.acc, cell, lookup.Bit(value)) && e.propagate()
	e.acc.Clear()
	return ok
}

// State reports the engine's current counters.
func (e *Engine) State() Progress {
	return Progress{
		Guesses:        e.guesses,
		Backtracks:     e.backtracks,
		SolutionsFound: e.solutionsFound,
		ProgressRatio:  e.progressRatio,
	}
}

// EnableSeenTracking turns on interesting-solution tracking for the
// search's selector, sized for this engine's grid and value
// range.
func (e *Engine) EnableSeenTracking(threshold int) {
	e.sel.EnableSeenTracking(e.Grid.NumCells(), e.Set.Shape.NumValues, threshold)
}

// ScoresSnapshot captures the selector's conflict-score state so a caller
// can rewind it across a step-by-step replay.
func (e *Engine) ScoresSnapshot() selector.ConflictScoresSnapshot { return e.sel.Scores().Snapshot() }

// RestoreScores replaces the selector's conflict-score state with a
// previously captured snapshot.
func (e *Engine) RestoreScores(snap selector.ConflictScoresSnapshot) { e.sel.Scores().Restore(snap) }

// propagate drains the accumulator, calling each dirty handler's
// EnforceConsistency until the queue empties or a wipeout occurs.
func (e *Engine) propagate() bool {
	for e.acc.HasAny() {
		idx, ok := e.acc.Pop()
		if !ok {
			break
		}
		h := e.Set.Handlers[idx]
		if !h.EnforceConsistency(e.Grid, e.acc) {
			return false
		}
	}
	return true
}

// isSolved reports whether every cell is fixed.
func (e *Engine) isSolved() bool {
	for c := 0; c < e.Grid.NumCells(); c++ {
		if _, ok := e.Grid.Get(c).Singleton(); !ok {
			return false
		}
	}
	return true
}

// Search runs the requested mode to completion (or until ctx is canceled
// or Terminate is called), invoking onSolution for every solution found;
// onSolution returning false stops the search early. limit bounds the
// number of solutions this call collects (0 = unbounded; n for the nth
// solution, 1 for layout validation); each call counts from zero.
func (e *Engine) Search(ctx context.Context, mode SearchMode, limit int, onSolution func(*Grid) bool) Progress {
	e.solutionsFound = 0
	e.solutionCallback = onSolution
	exhausted := e.searchRec(ctx, mode, limit, 1.0)
	if exhausted && !e.aborted {
		e.progressRatio = 1.0
	}
	return e.State()
}

func (e *Engine) searchRec(ctx context.Context, mode SearchMode, limit int, weight float64) bool {
	select {
	case <-ctx.Done():
		e.aborted = true
	default:
	}
	if e.MaxGuesses > 0 && e.guesses >= e.MaxGuesses {
		e.aborted = true
	}
	if e.aborted {
		return false
	}

	if e.isSolved() {
		e.solutionsFound++
		if e.sel.Seen() != nil {
			e.sel.Seen().AddSolutionGrid(e.Grid.Clone())
		}
		keepGoing := true
		if e.solutionCallback != nil {
			keepGoing = e.solutionCallback(e.Grid)
		}
		switch mode {
		case ModeFirstSolution, ModeValidateLayout:
			return false // one solution is enough; stop unwinding further guesses
		case ModeNthSolution, ModeCountSolutions, ModeAllPossibilities, ModeEstimatedCount:
			if limit > 0 && e.solutionsFound >= limit {
				return false
			}
			return keepGoing
		}
		return keepGoing
	}

	branches, ok := e.sel.ChooseBranches(e.Grid)
	if !ok {
		return true // no candidate cell found but not solved: shouldn't happen, treat as dead end
	}

	childWeight := weight / float64(len(branches))
	for _, b := range branches {
		if e.aborted {
			return false
		}
		e.guesses++
		if e.ProgressEvery > 0 && e.onProgress != nil && e.guesses%e.ProgressEvery == 0 {
			e.onProgress(e.State())
		}

		e.Grid.Mark()
		ok := handler.Prune(e.Grid, e.acc, b.Cell, lookup.Bit(b.Value)) && e.propagate()
		if ok {
			if !e.searchRec(ctx, mode, limit, childWeight) {
				e.Grid.Undo()
				e.acc.Clear()
				return false
			}
		} else {
			e.backtracks++
			e.sel.Scores().Increment(b.Cell, lookup.Bit(b.Value))
		}
		e.Grid.Undo()
		e.acc.Clear()
		e.progressRatio += childWeight
	}
	return true
}

// EstimateSolutions runs samples independent Monte-Carlo random walks
// down the search tree: at each open cell it picks a uniformly-random
// remaining candidate instead of branching over
// all of them, weighting the walk by the product of each step's candidate
// count, and reports the running mean and variance of that weight across
// every walk (a walk that dead-ends contributes 0). rng supplies the
// randomness; callers construct it so a request's seed is under their
// control. Each walk starts from the engine's current propagated state and
// fully undoes itself before the next one runs, so EstimateSolutions never
// disturbs the engine for a subsequent call.
func (e *Engine) EstimateSolutions(ctx context.Context, samples int, rng *rand.Rand) (mean, variance float64) {
	var sum, sumSq float64
	n := 0
	for i := 0; i < samples; i++ {
		select {
		case <-ctx.Done():
			e.aborted = true
		default:
		}
		if e.aborted {
			break
		}
		w := e.randomWalk(rng)
		n++
		sum += w
		sumSq += w * w
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance = sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// randomWalk performs one Monte-Carlo descent: repeatedly choosing an open
// cell via the selector but a uniformly-random value from its mask instead
// of branching over every value, multiplying the running weight by the
// mask's candidate count at each step. It returns the final weight once
// the walk reaches a full solution, or 0 once it dead-ends, undoing every
// mark it pushed before returning either way.
func (e *Engine) randomWalk(rng *rand.Rand) float64 {
	weight := 1.0
	marks := 0
	undo := func() {
		for ; marks > 0; marks-- {
			e.Grid.Undo()
			e.acc.Clear()
		}
	}
	for {
		if e.isSolved() {
			undo()
			return weight
		}
		cell, mask, ok := e.sel.Choose(e.Grid)
		if !ok {
			undo()
			return 0
		}
		values := mask.ToSlice()
		v := values[rng.Intn(len(values))]
		weight *= float64(len(values))

		e.Grid.Mark()
		marks++
		if !(handler.Prune(e.Grid, e.acc, cell, lookup.Bit(v)) && e.propagate()) {
			undo()
			return 0
		}
	}
}
