// Package library catalogues example constraint specs compiled into the
// binary, the variant-puzzle sibling of internal/puzzles's classic
// catalogue. Unlike that loader it never reads a file at startup: the
// examples are Go literals, and each gets a process-stable uuid so a
// client can reference one across requests.
package library

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"sudokusolver/internal/solverapi"
)

// Entry is one cataloged example: a human-readable name plus the spec a
// client would otherwise have to hand-assemble.
type Entry struct {
	ID   uuid.UUID
	Name string
	Spec solverapi.ConstraintSpec
}

var (
	once    sync.Once
	byID    map[uuid.UUID]Entry
	ordered []Entry
)

// build assigns each built-in example a uuid and indexes it by ID. Runs
// once per process; the IDs are stable for the process's lifetime but are
// not guaranteed to survive a restart (new random uuids each time), which
// is all "referenced idempotently across requests" requires.
func build() {
	seeds := []struct {
		name string
		spec solverapi.ConstraintSpec
	}{
		{
			name: "classic-killer-sample",
			spec: solverapi.ConstraintSpec{
				ShapeTag: "9x9",
				Givens:   map[string]int{"R1C1": 5, "R1C2": 3, "R2C1": 6},
				Constraints: []solverapi.Constraint{
					{Type: "cage", Target: 15, Cells: []string{"R1C4", "R1C5", "R1C6"}},
					{Type: "cage", Target: 10, Cells: []string{"R2C4", "R2C5"}},
				},
			},
		},
		{
			name: "thermo-and-arrow-sample",
			spec: solverapi.ConstraintSpec{
				ShapeTag: "9x9",
				Constraints: []solverapi.Constraint{
					{Type: "thermometer", Cells: []string{"R1C1", "R1C2", "R1C3", "R1C4"}},
					{Type: "arrow", HeadCells: []string{"R5C5"}, Cells: []string{"R5C6", "R5C7"}},
				},
			},
		},
		{
			name: "antiknight-sample",
			spec: solverapi.ConstraintSpec{
				ShapeTag: "9x9",
				Constraints: []solverapi.Constraint{
					{Type: "antiknight"},
				},
			},
		},
		{
			name: "jigsaw-6x6-sample",
			spec: solverapi.ConstraintSpec{
				ShapeTag: "6x6",
				NoBoxes:  true,
				ExtraRegions: [][]string{
					{"R1C1", "R1C2", "R2C1", "R2C2", "R3C1", "R3C2"},
					{"R1C3", "R1C4", "R1C5", "R1C6", "R2C3", "R2C4"},
					{"R2C5", "R2C6", "R3C5", "R3C6", "R4C5", "R4C6"},
					{"R3C3", "R3C4", "R4C3", "R4C4", "R5C3", "R5C4"},
					{"R4C1", "R4C2", "R5C1", "R5C2", "R6C1", "R6C2"},
					{"R5C5", "R5C6", "R6C3", "R6C4", "R6C5", "R6C6"},
				},
			},
		},
	}

	byID = make(map[uuid.UUID]Entry, len(seeds))
	for _, s := range seeds {
		e := Entry{ID: uuid.New(), Name: s.name, Spec: s.spec}
		byID[e.ID] = e
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
}

// All returns every cataloged example, sorted by name.
func All() []Entry {
	once.Do(build)
	return ordered
}

// Get looks up a cataloged example by ID.
func Get(id uuid.UUID) (Entry, bool) {
	once.Do(build)
	e, ok := byID[id]
	return e, ok
}
