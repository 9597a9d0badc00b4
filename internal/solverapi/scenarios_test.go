package solverapi

import (
	"context"
	"strconv"
	"testing"
)

// Empty 4x4 has exactly 288 distinct solutions.
func TestCountSolutionsEmpty4x4(t *testing.T) {
	spec := ConstraintSpec{ShapeTag: "4x4"}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := solver.CountSolutions(context.Background(), 0)
	if got != 288 {
		t.Fatalf("CountSolutions = %d, want 288", got)
	}
}

// A killer cage {R1C1,R1C2,R1C3} summing to 6 on an otherwise empty 9x9
// restricts those three cells to {1,2,3} after propagation, and every
// permutation of 1,2,3 across the cage appears among its solutions.
func TestKillerCageRestrictsToSmallestTriple(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag: "9x9",
		Constraints: []Constraint{
			{Type: "cage", Target: 6, Cells: []string{"R1C1", "R1C2", "R1C3"}},
		},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !solver.Feasible() {
		t.Fatal("expected sum=6 cage over 3 cells to be feasible")
	}
	for _, id := range []string{"R1C1", "R1C2", "R1C3"} {
		cell, err := solver.shape.ParseCellID(id)
		if err != nil {
			t.Fatalf("ParseCellID(%q): %v", id, err)
		}
		mask := solver.engine.Grid.Get(cell)
		for v := 4; v <= 9; v++ {
			if mask.Has(v) {
				t.Fatalf("cell %s still has candidate %d after propagation, want only {1,2,3}", id, v)
			}
		}
	}

	// Every permutation of {1,2,3} across the cage appears among the
	// solution set: forcing each ordering with givens must stay solvable.
	perms := [][3]int{{1, 2, 3}, {1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1}}
	for _, p := range perms {
		forced := ConstraintSpec{
			ShapeTag: "9x9",
			Givens:   map[string]int{"R1C1": p[0], "R1C2": p[1], "R1C3": p[2]},
			Constraints: []Constraint{
				{Type: "cage", Target: 6, Cells: []string{"R1C1", "R1C2", "R1C3"}},
			},
		}
		s, err := Build(forced, DebugOptions{})
		if err != nil {
			t.Fatalf("Build forced %v: %v", p, err)
		}
		if _, ok := s.NthSolution(context.Background(), 1); !ok {
			t.Fatalf("cage permutation %v has no completion, want every ordering of {1,2,3} solvable", p)
		}
	}
}

// A classic 9x9 with givens taken from a published solution (every cell
// except row 5, so each blank is forced by its column) has exactly that
// solution, and countSolutions reports 1.
func TestClassicPuzzleUniqueSolution(t *testing.T) {
	const published = "157924638362158974498736512531279486926483157784615293273561849619847325845392761"
	givens := map[string]int{}
	for i, ch := range published {
		row, col := i/9, i%9
		if row == 4 {
			continue
		}
		givens[cellID(row+1, col+1)] = int(ch - '0')
	}
	spec := ConstraintSpec{ShapeTag: "9x9", Givens: givens}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	layout, ok := solver.NthSolution(context.Background(), 1)
	if !ok {
		t.Fatal("expected the published puzzle to be solvable")
	}
	for i, ch := range published {
		row, col := i/9, i%9
		if got := layout[cellID(row+1, col+1)]; got != int(ch-'0') {
			t.Fatalf("cell R%dC%d = %d, want %d", row+1, col+1, got, ch-'0')
		}
	}
	if got := solver.CountSolutions(context.Background(), 0); got != 1 {
		t.Fatalf("CountSolutions = %d, want 1", got)
	}
}

// An arrow with head=R1C1 and a two-cell shaft on an otherwise empty 9x9
// bounds the head to {3..9} (it must be at least 1+2, the shaft's
// smallest possible sum) and the shaft cells to {1..8} (each must be
// strictly less than the head's maximum).
func TestArrowPropagationBounds(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag: "9x9",
		Constraints: []Constraint{
			{Type: "arrow", HeadCells: []string{"R1C1"}, Cells: []string{"R1C2", "R1C3"}},
		},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !solver.Feasible() {
		t.Fatal("expected a bare arrow to be feasible")
	}
	head, _ := solver.shape.ParseCellID("R1C1")
	headMask := solver.engine.Grid.Get(head)
	if headMask.Has(1) || headMask.Has(2) {
		t.Fatalf("head mask %v still allows a value below 3", headMask)
	}
	for _, id := range []string{"R1C2", "R1C3"} {
		cell, _ := solver.shape.ParseCellID(id)
		if solver.engine.Grid.Get(cell).Has(9) {
			t.Fatalf("shaft cell %s still allows 9, want < head's max of 9", id)
		}
	}
}

// Two conflicting constraints pinning the same cell to different values
// must be caught during construction and the solver reports infeasible
// with no solutions.
func TestConflictingGivensInfeasible(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag: "9x9",
		Givens:   map[string]int{"R1C1": 5},
		Constraints: []Constraint{
			{Type: "cage", Target: 1, Cells: []string{"R1C1"}}, // forces R1C1 == 1, contradicting the given 5
		},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if solver.Feasible() {
		t.Fatal("expected conflicting constraints on R1C1 to be infeasible")
	}
	if _, ok := solver.NthSolution(context.Background(), 1); ok {
		t.Fatal("expected nthSolution(1) to find nothing on an infeasible solver")
	}
}

// A jigsaw layout with 9 valid regions validates; merging two regions'
// cells so one region is no longer a disjoint partition makes the bare
// layout unsatisfiable.
func TestJigsawValidateLayout(t *testing.T) {
	regions := standard9x9Jigsaw()
	spec := ConstraintSpec{ShapeTag: "9x9", NoBoxes: true, ExtraRegions: regions}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := solver.ValidateLayout(context.Background()); !ok {
		t.Fatal("expected the standard 3x3-box jigsaw tiling to validate")
	}

	broken := make([][]string, len(regions))
	for i, r := range regions {
		broken[i] = append([]string(nil), r...)
	}
	// Steal R1C1 from region 0 and add it to region 1 as well, so region 1
	// now has ten cells overlapping region 0 at R1C1 — no longer a
	// disjoint partition of the grid.
	broken[1] = append(broken[1], broken[0][0])

	badSpec := ConstraintSpec{ShapeTag: "9x9", NoBoxes: true, ExtraRegions: broken}
	badSolver, err := Build(badSpec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := badSolver.ValidateLayout(context.Background()); ok {
		t.Fatal("expected an overlapping region to make validateLayout fail")
	}
}

// standard9x9Jigsaw returns the ordinary 3x3 box tiling expressed as
// jigsaw regions, used as a known-valid baseline.
func standard9x9Jigsaw() [][]string {
	var regions [][]string
	for br := 0; br < 3; br++ {
		for bc := 0; bc < 3; bc++ {
			var region []string
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					region = append(region, cellID(br*3+r+1, bc*3+c+1))
				}
			}
			regions = append(regions, region)
		}
	}
	return regions
}

func cellID(row, col int) string {
	cols := "123456789"
	return "R" + strconv.Itoa(row) + "C" + string(cols[col-1])
}
