// Package constants holds the fixed parameters of the classic 9x9 puzzle
// catalogue (internal/puzzles). Variant-grid shapes (arbitrary rows x
// cols x numValues) are described by kernel/shape.Shape instead; these
// constants only describe the one fixed 9x9 catalogue shipped with the
// binary.
package constants

// Grid constants for the classic 9x9 catalogue.
const (
	GridSize   = 9
	BoxSize    = 3
	TotalCells = 81
	MinGivens  = 17
)

// Difficulty names used by the classic-puzzle catalogue.
const (
	DifficultyEasy       = "easy"
	DifficultyMedium     = "medium"
	DifficultyHard       = "hard"
	DifficultyExtreme    = "extreme"
	DifficultyImpossible = "impossible"
)

// DifficultyKeys maps full difficulty names to the compact keys used in
// the catalogue's JSON file format.
var DifficultyKeys = map[string]string{
	DifficultyEasy:       "e",
	DifficultyMedium:     "m",
	DifficultyHard:       "h",
	DifficultyExtreme:    "x",
	DifficultyImpossible: "i",
}

// TargetGivens records the approximate given-count the catalogue's
// generator aimed for per difficulty, kept alongside the puzzles for
// display purposes.
var TargetGivens = map[string]int{
	DifficultyEasy:       40,
	DifficultyMedium:     34,
	DifficultyHard:       28,
	DifficultyExtreme:    24,
	DifficultyImpossible: 20,
}
