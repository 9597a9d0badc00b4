// Package selector implements the candidate-cell and candidate-value
// choice the engine makes at each search node: minimum remaining values
// with a conflict-driven tie-break, plus support for step guides and
// handler-nominated custom candidate finders.
package selector

import (
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// decayPeriod is the number of Increment calls between decay passes.
const decayPeriod = 64

// ConflictScores tracks, per cell and per value, how often a guess has
// led to a dead end: the per-cell scores feed the MRV tie-break,
// the per-value scores feed the search's value-branching preference, and
// both decay periodically so old conflicts don't dominate forever.
type ConflictScores struct {
	numValues      int
	scores         []int // per-cell
	valueScores    []int // per-value, indexed by v-1
	decayCountdown int
}

// NewConflictScores builds a zeroed score table for numCells cells and
// numValues values.
func NewConflictScores(numCells, numValues int) *ConflictScores {
	return &ConflictScores{
		numValues:      numValues,
		scores:         make([]int, numCells),
		valueScores:    make([]int, numValues),
		decayCountdown: decayPeriod,
	}
}

// Score returns cell's current conflict score.
func (c *ConflictScores) Score(cell int) int { return c.scores[cell] }

// Increment bumps cell's score by 1 and every value in valueMask's score
// by 4, decaying every score once the countdown expires.
func (c *ConflictScores) Increment(cell int, valueMask lookup.Mask) {
	c.scores[cell]++
	for _, v := range valueMask.ToSlice() {
		c.valueScores[v-1] += 4
	}
	c.decayCountdown--
	if c.decayCountdown <= 0 {
		for i := range c.scores {
			c.scores[i] >>= 1
		}
		for i := range c.valueScores {
			c.valueScores[i] >>= 2
		}
		c.decayCountdown = decayPeriod
	}
}

// getMaxValueScore returns the value with the dominant conflict score,
// iff its score is at least numValues and more than 1.5x the smallest
// nonzero score — otherwise it reports "no preference".
func (c *ConflictScores) getMaxValueScore() (value int, ok bool) {
	maxScore, maxIdx := 0, -1
	for i, s := range c.valueScores {
		if s > maxScore {
			maxScore, maxIdx = s, i
		}
	}
	if maxIdx < 0 || maxScore < c.numValues {
		return 0, false
	}
	minNonzero := -1
	for i, s := range c.valueScores {
		if i != maxIdx && s > 0 && (minNonzero < 0 || s < minNonzero) {
			minNonzero = s
		}
	}
	if minNonzero > 0 && float64(maxScore) <= 1.5*float64(minNonzero) {
		return 0, false
	}
	return maxIdx + 1, true
}

// ConflictScoresSnapshot is a point-in-time copy of a ConflictScores,
// used to rewind the selector's learned state across a step-by-step
// replay.
type ConflictScoresSnapshot struct {
	scores         []int
	valueScores    []int
	decayCountdown int
}

// Snapshot captures c's current state.
func (c *ConflictScores) Snapshot() ConflictScoresSnapshot {
	return ConflictScoresSnapshot{
		scores:         append([]int(nil), c.scores...),
		valueScores:    append([]int(nil), c.valueScores...),
		decayCountdown: c.decayCountdown,
	}
}

// Restore replaces c's state with a previously captured snapshot.
func (c *ConflictScores) Restore(snap ConflictScoresSnapshot) {
	copy(c.scores, snap.scores)
	copy(c.valueScores, snap.valueScores)
	c.decayCountdown = snap.decayCountdown
}

// SeenCandidateSet tracks, per (cell, value), how many times a solution
// has held that value at that cell, saturating at a threshold T:
// it lets the selector focus ModeAllPossibilities / ModeEstimatedCount
// search on solutions that are still "interesting" — i.e. still raising
// some pair's support count toward T — instead of re-deriving solutions
// that differ only in already-well-supported cells.
type SeenCandidateSet struct {
	numValues  int
	threshold  int
	counts     []int         // cell*numValues + (v-1)
	candidates []lookup.Mask // per cell: values whose count has reached threshold
}

// NewSeenCandidateSet builds an empty seen-set over numCells cells and
// numValues values, saturating each (cell, value) pair's support count at
// threshold (clamped to [1, 255]).
func NewSeenCandidateSet(numCells, numValues, threshold int) *SeenCandidateSet {
	s := &SeenCandidateSet{
		numValues:  numValues,
		counts:     make([]int, numCells*numValues),
		candidates: make([]lookup.Mask, numCells),
	}
	s.ResetWithThreshold(threshold)
	return s
}

// ResetWithThreshold clears every counter and re-targets the saturation
// threshold").
func (s *SeenCandidateSet) ResetWithThreshold(t int) {
	if t < 1 {
		t = 1
	}
	if t > 255 {
		t = 255
	}
	s.threshold = t
	for i := range s.counts {
		s.counts[i] = 0
	}
	for i := range s.candidates {
		s.candidates[i] = 0
	}
}

func (s *SeenCandidateSet) index(cell, v int) int { return cell*s.numValues + v - 1 }

// AddSolutionGrid increments the support counter for every cell's current
// value (singleton cells in a full solution) and marks a (cell, value)
// pair saturated the moment its counter first reaches the threshold
//.
func (s *SeenCandidateSet) AddSolutionGrid(masks []lookup.Mask) {
	for cell, m := range masks {
		v, ok := m.Singleton()
		if !ok {
			continue
		}
		idx := s.index(cell, v)
		s.counts[idx]++
		if s.counts[idx] == s.threshold {
			s.candidates[cell] = s.candidates[cell].With(v)
		}
	}
}

// HasInterestingSolutions reports whether some still-open cell's current
// mask contains a value whose support count hasn't yet saturated.
func (s *SeenCandidateSet) HasInterestingSolutions(g handler.Grid) bool {
	for cell := 0; cell < g.NumCells(); cell++ {
		for _, v := range g.Get(cell).ToSlice() {
			if s.counts[s.index(cell, v)] < s.threshold {
				return true
			}
		}
	}
	return false
}

// InterestingMask restricts mask at cell to its not-yet-saturated values,
// falling back to mask unchanged if none of it is interesting.
func (s *SeenCandidateSet) InterestingMask(cell int, mask lookup.Mask) lookup.Mask {
	var interesting lookup.Mask
	for _, v := range mask.ToSlice() {
		if s.counts[s.index(cell, v)] < s.threshold {
			interesting = interesting.With(v)
		}
	}
	if interesting.IsEmpty() {
		return mask
	}
	return interesting
}

// StepGuide lets a caller override the selector's normal choice for one
// step, used by nthStep to walk a specific,
// externally-provided solving path instead of the engine's own heuristic.
type StepGuide struct {
	Cell  int
	Value int
}

// Selector chooses which cell to branch on and in what value order.
type Selector struct {
	finders []handler.Finder
	scores  *ConflictScores
	seen    *SeenCandidateSet
	Guide   []StepGuide // consumed front-to-back as Choose is called
}

// Branch is one (cell, value) guess the engine should try at the current
// search node. A node's branch list is exhaustive: if every branch fails,
// the subtree holds no solution.
type Branch struct {
	Cell  int
	Value int
}

// New builds a selector over the handler set's custom candidate finders
// and a fresh conflict-score table.
func New(handlers []handler.Handler, sh *shape.Shape) *Selector {
	var finders []handler.Finder
	for _, h := range handlers {
		if p, ok := h.(handler.CandidateFinderProvider); ok {
			finders = append(finders, p.CandidateFinders()...)
		}
	}
	return &Selector{finders: finders, scores: NewConflictScores(sh.NumCells, sh.NumValues)}
}

// Scores exposes the selector's conflict-score table so the engine can
// increment it on backtrack.
func (s *Selector) Scores() *ConflictScores { return s.scores }

// EnableSeenTracking turns on SeenCandidateSet-driven "interesting
// solution" restriction, used by ModeAllPossibilities and
// ModeEstimatedCount to bias sampling toward branches that still teach
// the search something new.
func (s *Selector) EnableSeenTracking(numCells, numValues, threshold int) {
	s.seen = NewSeenCandidateSet(numCells, numValues, threshold)
}

// Seen exposes the selector's seen-candidate tracker, or nil if disabled.
func (s *Selector) Seen() *SeenCandidateSet { return s.seen }

// OrderValues returns mask's candidate values in branching order: the
// conflict-dominant value first, if ConflictScores.getMaxValueScore
// names one that's still a candidate, then the rest in ascending order
//.
func (s *Selector) OrderValues(mask lookup.Mask) []int {
	if v, ok := s.scores.getMaxValueScore(); ok && mask.Has(v) {
		out := make([]int, 0, mask.Count())
		out = append(out, v)
		for _, other := range mask.ToSlice() {
			if other != v {
				out = append(out, other)
			}
		}
		return out
	}
	return mask.ToSlice()
}

// Choose picks the next cell to branch on and its candidate mask,
// following a fixed priority order: (1) the next step-guide override, if
// any remain; (2) minimum-remaining-values over unfixed cells (ties
// broken by highest conflict score); (3) when SeenCandidateSet is
// enabled and the search still has interesting solutions to find,
// restrict the chosen cell's mask to its not-yet-saturated values.
func (s *Selector) Choose(g handler.Grid) (cell int, mask lookup.Mask, ok bool) {
	if len(s.Guide) > 0 {
		next := s.Guide[0]
		s.Guide = s.Guide[1:]
		m := g.Get(next.Cell)
		if m.Has(next.Value) {
			return next.Cell, lookup.Bit(next.Value), true
		}
	}

	bestCell := -1
	bestCount := 1 << 30
	bestConflict := -1
	for c := 0; c < g.NumCells(); c++ {
		m := g.Get(c)
		if _, fixed := m.Singleton(); fixed {
			continue
		}
		count := m.Count()
		conflict := s.scores.Score(c)
		if count < bestCount || (count == bestCount && conflict > bestConflict) {
			bestCell, bestCount, bestConflict = c, count, conflict
			mask = m
		}
	}
	if bestCell < 0 {
		return 0, 0, false
	}

	if s.seen != nil && s.seen.HasInterestingSolutions(g) {
		mask = s.seen.InterestingMask(bestCell, mask)
	}
	return bestCell, mask, true
}

// ChooseBranches expands the node's choice into an exhaustive branch
// list: normally the MRV cell's candidates in value order, but when the
// cell is loose (count > 2) and some value has a dominant conflict
// score, a custom candidate finder may instead nominate a required
// value's host cells — "v goes in c1, or c2, or …" — which is exhaustive
// whenever v must appear somewhere in the finder's region.
func (s *Selector) ChooseBranches(g handler.Grid) ([]Branch, bool) {
	cell, mask, ok := s.Choose(g)
	if !ok {
		return nil, false
	}
	count := mask.Count()
	if count > 2 && len(s.finders) > 0 {
		if _, hasPreference := s.scores.getMaxValueScore(); hasPreference {
			if branches, found := s.bestFinderBranches(g, count); found {
				return branches, true
			}
		}
	}
	out := make([]Branch, 0, count)
	for _, v := range s.OrderValues(mask) {
		out = append(out, Branch{Cell: cell, Value: v})
	}
	return out, true
}

// bestFinderBranches polls every custom candidate finder and keeps the
// highest-scoring nomination that is strictly tighter than the MRV
// cell's own candidate count.
func (s *Selector) bestFinderBranches(g handler.Grid, maxLen int) ([]Branch, bool) {
	bestScore := -1
	bestValue := 0
	var bestCells []int
	for _, finder := range s.finders {
		score, value, cells, ok := finder(g)
		if !ok || len(cells) < 2 || len(cells) >= maxLen {
			continue
		}
		if score > bestScore {
			bestScore, bestValue, bestCells = score, value, cells
		}
	}
	if bestCells == nil {
		return nil, false
	}
	out := make([]Branch, len(bestCells))
	for i, c := range bestCells {
		out[i] = Branch{Cell: c, Value: bestValue}
	}
	return out, true
}
