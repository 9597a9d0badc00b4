// Command solve drives solverapi.Solver from the command line: a JSON
// spec file path or a cataloged example name in, search status and
// layout out.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"sudokusolver/internal/library"
	"sudokusolver/internal/solverapi"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: solve <spec.json | example-name> [mode]")
		fmt.Println("modes: first (default), count, validate-layout, all, estimate")
		os.Exit(1)
	}

	spec, err := loadSpec(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	mode := "first"
	if len(os.Args) >= 3 {
		mode = os.Args[2]
	}

	solver, err := solverapi.Build(*spec, solverapi.DebugOptions{LogHandlerCount: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build error: %v\n", err)
		os.Exit(1)
	}
	if !solver.Feasible() {
		fmt.Println("infeasible")
		os.Exit(1)
	}

	ctx := context.Background()
	switch mode {
	case "first":
		layout, ok := solver.NthSolution(ctx, 1)
		printLayoutResult(layout, ok)
	case "count":
		count := solver.CountSolutions(ctx, 0)
		fmt.Printf("solutions: %d\n", count)
	case "validate-layout":
		layout, ok := solver.ValidateLayout(ctx)
		printLayoutResult(layout, ok)
	case "all":
		result := solver.SolveAllPossibilities(ctx, 1)
		fmt.Printf("cells with possibilities: %d\n", len(result.Pencilmarks))
	case "estimate":
		est := solver.EstimatedCountSolutions(ctx, 256)
		fmt.Printf("estimated solutions: mean=%.2f variance=%.2f\n", est.Mean, est.Variance)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(1)
	}

	state := solver.State()
	fmt.Printf("guesses=%d backtracks=%d\n", state.Guesses, state.Backtracks)
}

func printLayoutResult(layout solverapi.Layout, ok bool) {
	if !ok {
		fmt.Println("no solution")
		return
	}
	out, _ := json.Marshal(layout)
	fmt.Println(string(out))
}

// loadSpec tries arg as a cataloged example uuid first, then as an example
// name, then as a JSON file path on disk.
func loadSpec(arg string) (*solverapi.ConstraintSpec, error) {
	if id, err := uuid.Parse(arg); err == nil {
		if entry, ok := library.Get(id); ok {
			return &entry.Spec, nil
		}
	}
	for _, entry := range library.All() {
		if entry.Name == arg {
			return &entry.Spec, nil
		}
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("not a known example and not readable as a file: %w", err)
	}
	var spec solverapi.ConstraintSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid spec JSON: %w", err)
	}
	return &spec, nil
}
