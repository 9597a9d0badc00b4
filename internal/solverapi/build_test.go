package solverapi

import (
	"context"
	"testing"
)

func TestBuildAntiKnightFeasible(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag:    "9x9",
		Constraints: []Constraint{{Type: "antiknight"}},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !solver.Feasible() {
		t.Fatal("expected a bare anti-knight 9x9 to be feasible")
	}
}

func TestBuildTaxicabWithImpossibleGapIsInfeasible(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag: "9x9",
		// No two values in 1..9 differ by 9 or more (max difference is 8),
		// so every orthogonally adjacent pair wipes out on the very first
		// propagation pass.
		Constraints: []Constraint{{Type: "taxicab", Param: 9}},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if solver.Feasible() {
		t.Fatal("expected an unsatisfiable taxicab gap to be infeasible")
	}
}

func TestBuildUnknownConstraintType(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag:    "9x9",
		Constraints: []Constraint{{Type: "not-a-real-type"}},
	}
	_, err := Build(spec, DebugOptions{})
	if err == nil {
		t.Fatal("expected an error for an unknown constraint type")
	}
}

func TestValidateLayoutSolvesBareHouses(t *testing.T) {
	spec := ConstraintSpec{ShapeTag: "9x9"}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	layout, ok := solver.ValidateLayout(context.Background())
	if !ok {
		t.Fatal("expected a bare 9x9 layout to be solvable")
	}
	if len(layout) != 81 {
		t.Fatalf("got %d placed cells, want 81", len(layout))
	}
}

func TestCheckLayoutDoesNotMutateSolverState(t *testing.T) {
	spec := ConstraintSpec{ShapeTag: "9x9"}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Two independent single-cell checks against the same unconstrained
	// cell, each consistent on its own. If CheckLayout leaked its Set
	// calls into the live engine grid (the bug this guards against), the
	// first call would pin R1C1 to 5 there and the second, checking a
	// different value for the same cell, would wrongly fail.
	if !solver.CheckLayout(Layout{"R1C1": 5}) {
		t.Fatal("expected R1C1=5 to be a consistent partial layout")
	}
	if !solver.CheckLayout(Layout{"R1C1": 7}) {
		t.Fatal("CheckLayout must not disturb the solver's own grid state")
	}
}

func TestWarmCatalogueReportsPerSpecResults(t *testing.T) {
	specs := []ConstraintSpec{
		{ShapeTag: "9x9"},
		{ShapeTag: "9x9", Constraints: []Constraint{{Type: "not-a-real-type"}}},
	}
	results := WarmCatalogue(context.Background(), specs, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil || !results[0].Feasible {
		t.Fatalf("spec 0 should build feasibly, got %+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatal("spec 1 should fail to build (unknown constraint type)")
	}
}

func TestCageImplicitAllDifferent(t *testing.T) {
	// A cage whose cells share no row, column or box still forbids
	// repeats: {R1C1, R2C4} with target 4 admits (1,3) and (3,1) but
	// never (2,2).
	spec := ConstraintSpec{
		ShapeTag: "9x9",
		Constraints: []Constraint{
			{Type: "cage", Target: 4, Cells: []string{"R1C1", "R2C4"}},
		},
	}
	solver, err := Build(spec, DebugOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !solver.Feasible() {
		t.Fatal("expected a 2-cell sum-4 cage to be feasible")
	}
	for _, id := range []string{"R1C1", "R2C4"} {
		cell, err := solver.shape.ParseCellID(id)
		if err != nil {
			t.Fatalf("ParseCellID(%q): %v", id, err)
		}
		mask := solver.engine.Grid.Get(cell)
		if mask.Has(2) {
			t.Fatalf("cell %s still allows 2, but 2+2 repeats inside the cage", id)
		}
		if !mask.Has(1) || !mask.Has(3) {
			t.Fatalf("cell %s = %v, want {1,3}", id, mask)
		}
	}
}

func TestBuildModularRejectsMissingModulus(t *testing.T) {
	spec := ConstraintSpec{
		ShapeTag:    "9x9",
		Constraints: []Constraint{{Type: "modular", Cells: []string{"R1C1", "R1C2", "R1C3"}}},
	}
	if _, err := Build(spec, DebugOptions{}); err == nil {
		t.Fatal("expected an error for a modular line without a modulus")
	}
}
