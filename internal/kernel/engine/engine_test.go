package engine

import (
	"context"
	"math/rand"
	"testing"

	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/handlers"
	"sudokusolver/internal/kernel/handlerset"
	"sudokusolver/internal/kernel/shape"
)

// buildHouseOnlyEngine wires just the row/column/box all-different houses
// for sh — the minimal handler set a bare grid needs to have a nontrivial
// but small search tree.
func buildHouseOnlyEngine(t *testing.T, sh *shape.Shape) *Engine {
	t.Helper()
	var built []handler.Handler
	for _, house := range sh.Rows() {
		built = append(built, handlers.NewAllDifferent(house))
	}
	for _, house := range sh.Cols() {
		built = append(built, handlers.NewAllDifferent(house))
	}
	if sh.HasBoxes() {
		for _, house := range sh.Boxes() {
			built = append(built, handlers.NewAllDifferent(house))
		}
	}

	g := NewGrid(sh)
	alloc := NewScratchAllocator()
	set, ok := handlerset.New(sh, g, alloc, built)
	if !ok {
		t.Fatal("handlerset.New reported infeasible for a bare grid")
	}
	eng, ok := New(set, g)
	if !ok {
		t.Fatal("engine.New reported infeasible for a bare grid")
	}
	return eng
}

func TestSearchCountsEmpty4x4(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	eng := buildHouseOnlyEngine(t, sh)

	progress := eng.Search(context.Background(), ModeCountSolutions, 0, func(*Grid) bool { return true })
	if progress.SolutionsFound != 288 {
		t.Fatalf("SolutionsFound = %d, want 288", progress.SolutionsFound)
	}
}

func TestProgressRatioMonotonicAndReachesOne(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	eng := buildHouseOnlyEngine(t, sh)

	last := -1.0
	eng.SetProgressCallback(1, func(p Progress) {
		if p.ProgressRatio < last {
			t.Fatalf("progressRatio decreased: %f then %f", last, p.ProgressRatio)
		}
		last = p.ProgressRatio
	})

	final := eng.Search(context.Background(), ModeCountSolutions, 0, func(*Grid) bool { return true })
	if final.ProgressRatio < 1-1e-9 {
		t.Fatalf("ProgressRatio = %f after a completed search, want >= 1-ε", final.ProgressRatio)
	}
}

func TestProgressRatioNotForcedToOneWhenAborted(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	eng := buildHouseOnlyEngine(t, sh)
	eng.SetMaxGuesses(1)

	final := eng.Search(context.Background(), ModeCountSolutions, 0, func(*Grid) bool { return true })
	if final.ProgressRatio >= 1 {
		t.Fatalf("ProgressRatio = %f after an aborted search, want < 1", final.ProgressRatio)
	}
}

func TestEstimateSolutionsIsUnbiasedOnAKnownCount(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	eng := buildHouseOnlyEngine(t, sh)

	rng := rand.New(rand.NewSource(1))
	mean, _ := eng.EstimateSolutions(context.Background(), 500, rng)
	// 288 true solutions; a few hundred samples should land the Monte-Carlo
	// mean within a generous band of the true count.
	if mean < 50 || mean > 2000 {
		t.Fatalf("EstimateSolutions mean = %f, want roughly near 288", mean)
	}
}

func TestStepAppliesAndUndoesAGuess(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	eng := buildHouseOnlyEngine(t, sh)

	cell, value, ok := eng.ChooseStep()
	if !ok {
		t.Fatal("ChooseStep found no candidate on a fresh grid")
	}
	before := eng.Grid.Get(cell)
	if !eng.Step(cell, value) {
		t.Fatal("Step reported a contradiction on a fresh grid's first guess")
	}
	after := eng.Grid.Get(cell)
	v, singleton := after.Singleton()
	if !singleton || v != value {
		t.Fatalf("after Step, cell mask = %v, want singleton %d", after, value)
	}
	eng.Grid.Undo()
	if eng.Grid.Get(cell) != before {
		t.Fatal("Grid.Undo did not restore the pre-Step mask")
	}
}
