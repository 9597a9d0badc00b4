package solverapi

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"sudokusolver/internal/kernel/engine"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/handlerset"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/selector"
	"sudokusolver/internal/kernel/shape"
)

// Solver is the external API surface over a built constraint spec:
// everything a client drives the kernel through after Build succeeds.
type Solver struct {
	engine   *engine.Engine
	shape    *shape.Shape
	feasible bool

	// layoutHandlers are the house/jigsaw/diagonal AllDifferent handlers
	// built before any clued constraint, the subset validateLayout()
	// solves against.
	layoutHandlers []handler.Handler

	// steps records the forced branches nthStep has applied so far, one
	// entry per step, so a later nthStep(n) call can rewind by restoring
	// an earlier entry's captured grid and selector state instead of
	// replaying the whole walk.
	steps []stepRecord

	// rootGrid/rootScores are the propagated state right before the first
	// step is ever taken, captured lazily so nthStep(0) can rewind all
	// the way back.
	rootGrid     []lookup.Mask
	rootScores   selector.ConflictScoresSnapshot
	rootCaptured bool
}

// Layout is a full assignment, one value per cell in row-major order.
type Layout map[string]int

// layoutFromGrid renders a fully-solved grid into the wire Layout format.
func (s *Solver) layoutFromGrid(masks []lookup.Mask) Layout {
	out := make(Layout, len(masks))
	for cell, m := range masks {
		if v, ok := m.Singleton(); ok {
			out[s.shape.MakeCellID(cell)] = v
		}
	}
	return out
}

// NthSolution returns the nth solution (1-indexed) in search order, or
// false if fewer than n solutions exist.
func (s *Solver) NthSolution(ctx context.Context, n int) (Layout, bool) {
	if !s.feasible || n < 1 {
		return nil, false
	}
	var found Layout
	count := 0
	s.engine.Search(ctx, engine.ModeNthSolution, n, func(g *engine.Grid) bool {
		count++
		if count == n {
			found = s.layoutFromGrid(g.Clone())
			return false
		}
		return true
	})
	return found, found != nil
}

// CountSolutions counts solutions exactly, stopping early once it reaches
// limit (0 means unbounded).
func (s *Solver) CountSolutions(ctx context.Context, limit int) int {
	if !s.feasible {
		return 0
	}
	progress := s.engine.Search(ctx, engine.ModeCountSolutions, limit, func(*engine.Grid) bool { return true })
	return progress.SolutionsFound
}

// EstimatedCount is the Monte-Carlo result of EstimatedCountSolutions: a
// running mean and variance over independent random-walk samples of the
// search tree.
type EstimatedCount struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// EstimatedCountSolutions draws samples independent Monte-Carlo walks down
// the search tree — each walk picks a uniformly-random candidate at every
// open cell and weights itself by the product of each step's candidate
// count — and reports the running mean and variance of that weight, a
// cheap unbiased estimator of the true solution count that avoids the
// cost of an exact CountSolutions on a puzzle with many solutions.
func (s *Solver) EstimatedCountSolutions(ctx context.Context, samples int) EstimatedCount {
	if !s.feasible || samples <= 0 {
		return EstimatedCount{}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	mean, variance := s.engine.EstimateSolutions(ctx, samples, rng)
	return EstimatedCount{Mean: mean, Variance: variance}
}

// Possibilities is the "all possibilities" view: pencilmarks is, per
// cell, the union of every value seen across the solutions enumerated;
// counts is, per cell, how many of those solutions held each value.
type Possibilities struct {
	Pencilmarks map[string]lookup.Mask `json:"pencilmarks"`
	Counts      map[string]map[int]int `json:"counts"`
}

// SolveAllPossibilities enumerates solutions — biasing the search toward
// ones that still teach it something new via the selector's seen-candidate
// tracking — until every cell has accumulated at least threshold distinct
// confirmed values (or the search exhausts itself first), then returns
// the per-cell union mask and per-(cell, value) support counts.
func (s *Solver) SolveAllPossibilities(ctx context.Context, threshold int) Possibilities {
	out := Possibilities{Pencilmarks: map[string]lookup.Mask{}, Counts: map[string]map[int]int{}}
	if !s.feasible {
		return out
	}
	if threshold < 1 {
		threshold = 1
	}
	s.engine.EnableSeenTracking(threshold)

	numCells := s.shape.NumCells
	confirmed := make([]lookup.Mask, numCells)
	s.engine.Search(ctx, engine.ModeAllPossibilities, 0, func(g *engine.Grid) bool {
		for cell := 0; cell < g.NumCells(); cell++ {
			v, ok := g.Get(cell).Singleton()
			if !ok {
				continue
			}
			id := s.shape.MakeCellID(cell)
			out.Pencilmarks[id] = out.Pencilmarks[id].With(v)
			if out.Counts[id] == nil {
				out.Counts[id] = map[int]int{}
			}
			out.Counts[id][v]++
			confirmed[cell] = confirmed[cell].With(v)
		}
		for cell := 0; cell < numCells; cell++ {
			if confirmed[cell].Count() < threshold {
				return true // keep searching; some cell still underconfirmed
			}
		}
		return false
	})
	return out
}

// CheckLayout reports whether layout is consistent with every active
// constraint, independent of whether it's reachable by search (a client
// may be checking a manually-entered grid against the full puzzle,
// clues included). It runs against a scratch copy of the grid, so it
// never disturbs the solver's own search state.
func (s *Solver) CheckLayout(layout Layout) bool {
	if !s.feasible {
		return false
	}
	g := engine.NewGridFromMasks(s.engine.Grid.Clone())
	for cellID, v := range layout {
		cell, err := s.shape.ParseCellID(cellID)
		if err != nil {
			return false
		}
		if !g.Get(cell).Has(v) {
			return false
		}
		if !g.Set(cell, lookup.Bit(v)) {
			return false
		}
	}
	dummy := dummyAccumulator{}
	for _, h := range s.engine.Set.Handlers {
		if !h.EnforceConsistency(g, dummy) {
			return false
		}
	}
	return true
}

// ValidateLayout solves against only the house/box/jigsaw layout
// handlers built for this shape — every clued constraint (givens, sums,
// lines, …) is ignored — and returns the first solution found, or false
// if even the bare layout is unsatisfiable. It builds an independent
// scratch engine, so
// it never disturbs the solver's own search state or counters.
func (s *Solver) ValidateLayout(ctx context.Context) (Layout, bool) {
	g := engine.NewGrid(s.shape)
	alloc := engine.NewScratchAllocator()
	set, ok := handlerset.New(s.shape, g, alloc, s.layoutHandlers)
	if !ok {
		return nil, false
	}
	eng, ok := engine.New(set, g)
	if !ok {
		return nil, false
	}
	var found Layout
	eng.Search(ctx, engine.ModeValidateLayout, 1, func(solved *engine.Grid) bool {
		found = s.layoutFromGrid(solved.Clone())
		return false
	})
	return found, found != nil
}

// dummyAccumulator discards AddForCell notifications; CheckLayout only
// cares whether a single consistency pass wipes a cell out, not about
// iterating propagation to a fixed point.
type dummyAccumulator struct{}

func (dummyAccumulator) AddForCell(int) {}

// stepRecord is one entry in the solver's step history: the forced
// branch applied and the resulting state, captured so a later rewind can
// restore it without replaying the walk from scratch.
type stepRecord struct {
	cell        int
	value       int
	applied     bool // false when this guess wiped a cell out
	gridAfter   []lookup.Mask
	scoresAfter selector.ConflictScoresSnapshot
}

// StepStatus is the point-in-time summary embedded in a StepResult.
type StepStatus struct {
	Values           Layout `json:"values"`
	IsSolution       bool   `json:"isSolution"`
	HasContradiction bool   `json:"hasContradiction"`
}

// StepResult is what nthStep returns →
// StepResult"): a human-readable description of the step taken, the
// cell/value diff against the previous step, a status snapshot, and the
// cells a client should highlight.
type StepResult struct {
	Description    string         `json:"description"`
	Diff           map[string]int `json:"diff"`
	StatusData     StepStatus     `json:"statusData"`
	HighlightCells []string       `json:"highlightCells,omitempty"`
}

// ensureStepRoot lazily captures the propagated root state the first time
// nthStep is ever called, so nthStep(0) can always rewind back to it.
func (s *Solver) ensureStepRoot() {
	if s.rootCaptured {
		return
	}
	s.rootGrid = s.engine.Grid.Clone()
	s.rootScores = s.engine.ScoresSnapshot()
	s.rootCaptured = true
}

// rewindTo restores the engine's grid and selector conflict-score state to
// what they were right after step n was applied (n == 0 means the
// unguided root), discarding any recorded steps after it, so rewinding
// to an earlier step reproduces the earlier view exactly.
func (s *Solver) rewindTo(n int) {
	if n <= 0 {
		s.engine.Grid = engine.NewGridFromMasks(s.rootGrid)
		s.engine.RestoreScores(s.rootScores)
		s.steps = s.steps[:0]
		return
	}
	rec := s.steps[n-1]
	s.engine.Grid = engine.NewGridFromMasks(rec.gridAfter)
	s.engine.RestoreScores(rec.scoresAfter)
	s.steps = s.steps[:n]
}

// nextStepChoice picks the forced branch for the step about to be taken
// (1-indexed stepNumber): guides[stepNumber] overrides the selector if its
// cell still has that value as a candidate, otherwise the selector's own
// choice is used.
func (s *Solver) nextStepChoice(stepNumber int, guides map[int]selector.StepGuide) (cell, value int, ok bool) {
	if g, has := guides[stepNumber]; has && s.engine.Grid.Get(g.Cell).Has(g.Value) {
		return g.Cell, g.Value, true
	}
	return s.engine.ChooseStep()
}

// currentStepResult renders the engine's current grid into a StepResult,
// diffing it against the state before the most recent step.
func (s *Solver) currentStepResult(contradiction bool) StepResult {
	masks := s.engine.Grid.Clone()
	values := s.layoutFromGrid(masks)
	diff := map[string]int{}
	var highlight []string
	var desc string

	if len(s.steps) == 0 {
		desc = "initial propagated state"
	} else {
		last := s.steps[len(s.steps)-1]
		highlight = []string{s.shape.MakeCellID(last.cell)}
		var prev []lookup.Mask
		if len(s.steps) > 1 {
			prev = s.steps[len(s.steps)-2].gridAfter
		} else {
			prev = s.rootGrid
		}
		for cell, m := range masks {
			v, ok := m.Singleton()
			if !ok {
				continue
			}
			if pv, pok := prev[cell].Singleton(); !pok || pv != v {
				diff[s.shape.MakeCellID(cell)] = v
			}
		}
		if last.applied {
			desc = fmt.Sprintf("set %s = %d", s.shape.MakeCellID(last.cell), last.value)
		} else {
			desc = fmt.Sprintf("guessed %s = %d, reached a contradiction", s.shape.MakeCellID(last.cell), last.value)
		}
	}

	return StepResult{
		Description: desc,
		Diff:        diff,
		StatusData: StepStatus{
			Values:           values,
			IsSolution:       len(values) == s.shape.NumCells,
			HasContradiction: contradiction,
		},
		HighlightCells: highlight,
	}
}

// NthStep advances or rewinds the search to step n (1-indexed; 0 is the
// propagated root before any guess), following guides for any step index
// it names instead of the selector's own heuristic, and reports the
// resulting state as a StepResult"). Rewinding
// to an earlier step and then stepping forward again reproduces the
// earlier path exactly, since every step's selector state is snapshotted
// and restored alongside its grid.
func (s *Solver) NthStep(ctx context.Context, n int, guides map[int]selector.StepGuide) (StepResult, bool) {
	if !s.feasible || n < 0 {
		return StepResult{}, false
	}
	s.ensureStepRoot()

	if n < len(s.steps) {
		s.rewindTo(n)
	}
	for len(s.steps) < n {
		select {
		case <-ctx.Done():
			return s.currentStepResult(false), false
		default:
		}
		stepNumber := len(s.steps) + 1
		cell, value, ok := s.nextStepChoice(stepNumber, guides)
		if !ok {
			return s.currentStepResult(false), false
		}
		applied := s.engine.Step(cell, value)
		s.steps = append(s.steps, stepRecord{
			cell:        cell,
			value:       value,
			applied:     applied,
			gridAfter:   s.engine.Grid.Clone(),
			scoresAfter: s.engine.ScoresSnapshot(),
		})
		if !applied {
			return s.currentStepResult(true), true
		}
	}
	return s.currentStepResult(false), true
}

// State reports the engine's running counters.
func (s *Solver) State() engine.Progress {
	if s.engine == nil {
		return engine.Progress{Done: true}
	}
	return s.engine.State()
}

// SetProgressCallback installs a periodic progress callback.
func (s *Solver) SetProgressCallback(every int, cb func(engine.Progress)) {
	if s.engine != nil {
		s.engine.SetProgressCallback(every, cb)
	}
}

// SetMaxGuesses caps how many guesses any subsequent Search call may take
// before aborting, independent of context cancellation.
func (s *Solver) SetMaxGuesses(n int) {
	if s.engine != nil {
		s.engine.SetMaxGuesses(n)
	}
}

// Terminate requests the in-flight search stop.
func (s *Solver) Terminate() {
	if s.engine != nil {
		s.engine.Terminate()
	}
}

// Feasible reports whether construction (including the optimizer's
// infeasibility checks) found the spec solvable at all.
func (s *Solver) Feasible() bool { return s.feasible }
