// Package puzzles serves the pre-generated classic 9x9 catalogue: a JSON
// file of complete solutions with per-difficulty given masks, loaded once
// at startup. Catalogue entries are exposed as wire-format givens maps so
// the solver kernel (which speaks constraint specs, not 81-digit strings)
// can consume them directly.
package puzzles

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"

	"sudokusolver/pkg/constants"
)

// CompactPuzzle stores one catalogue entry in minimal format.
type CompactPuzzle struct {
	S string           `json:"s"` // solution as TotalCells-char string
	G map[string][]int `json:"g"` // givens: difficulty key -> cell indices
}

// PuzzleFile is the top-level structure for the JSON file.
type PuzzleFile struct {
	Version int             `json:"version"`
	Count   int             `json:"count"`
	Puzzles []CompactPuzzle `json:"puzzles"`
}

// Loader manages the pre-generated catalogue.
type Loader struct {
	puzzles []CompactPuzzle
	mu      sync.RWMutex
}

var (
	globalLoader *Loader
	loadOnce     sync.Once
	loadErr      error
)

// Load reads puzzles from the JSON file.
func Load(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read puzzle file: %w", err)
	}

	var file PuzzleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse puzzle file: %w", err)
	}

	return &Loader{puzzles: file.Puzzles}, nil
}

// LoadGlobal loads puzzles into the global loader (singleton).
func LoadGlobal(path string) error {
	loadOnce.Do(func() {
		globalLoader, loadErr = Load(path)
	})
	return loadErr
}

// Global returns the global loader instance, or nil when LoadGlobal
// failed or was never called.
func Global() *Loader {
	return globalLoader
}

// SetGlobal sets the global loader instance (for testing).
func SetGlobal(l *Loader) {
	globalLoader = l
}

// NewLoaderFromPuzzles creates a loader from in-memory puzzle data.
func NewLoaderFromPuzzles(puzzles []CompactPuzzle) *Loader {
	return &Loader{puzzles: puzzles}
}

// Count returns the number of puzzles.
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.puzzles)
}

// GetPuzzle returns a puzzle by index: givens and solution as flat
// value slices (0 for a blank given), both TotalCells long.
func (l *Loader) GetPuzzle(index int, difficulty string) (givens []int, solution []int, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index < 0 || index >= len(l.puzzles) {
		return nil, nil, fmt.Errorf("puzzle index %d out of range (0-%d)", index, len(l.puzzles)-1)
	}

	puzzle := l.puzzles[index]

	solution = make([]int, constants.TotalCells)
	for i, c := range puzzle.S {
		solution[i] = int(c - '0')
	}

	key, ok := constants.DifficultyKeys[difficulty]
	if !ok {
		return nil, nil, fmt.Errorf("unknown difficulty: %s", difficulty)
	}

	indices, ok := puzzle.G[key]
	if !ok {
		return nil, nil, fmt.Errorf("difficulty %s not found in puzzle", difficulty)
	}

	givens = make([]int, constants.TotalCells)
	for _, idx := range indices {
		givens[idx] = solution[idx]
	}

	return givens, solution, nil
}

// GivensMap converts a flat givens slice from GetPuzzle into the wire
// cell-id format a ConstraintSpec's Givens field expects ("R1C1": 5, ...),
// skipping blanks.
func GivensMap(givens []int) map[string]int {
	out := make(map[string]int)
	for i, v := range givens {
		if v == 0 {
			continue
		}
		row := i/constants.GridSize + 1
		col := i%constants.GridSize + 1
		out[fmt.Sprintf("R%dC%d", row, col)] = v
	}
	return out
}

// GetPuzzleBySeed returns a puzzle for a given seed string, using an FNV
// hash to deterministically map the seed to a catalogue index.
func (l *Loader) GetPuzzleBySeed(seed string, difficulty string) (givens []int, solution []int, puzzleIndex int, err error) {
	l.mu.RLock()
	count := len(l.puzzles)
	l.mu.RUnlock()

	if count == 0 {
		return nil, nil, 0, fmt.Errorf("no puzzles loaded")
	}

	h := fnv.New64a()
	h.Write([]byte(seed))
	puzzleIndex = int(h.Sum64() % uint64(count))

	givens, solution, err = l.GetPuzzle(puzzleIndex, difficulty)
	return
}

// GetDailyPuzzle returns the puzzle for a given UTC date.
func (l *Loader) GetDailyPuzzle(date time.Time, difficulty string) (givens []int, solution []int, puzzleIndex int, err error) {
	dateStr := date.UTC().Format("2006-01-02")
	return l.GetPuzzleBySeed("daily:"+dateStr, difficulty)
}

// GetTodayPuzzle returns the puzzle for today (UTC).
func (l *Loader) GetTodayPuzzle(difficulty string) (givens []int, solution []int, puzzleIndex int, err error) {
	return l.GetDailyPuzzle(time.Now(), difficulty)
}
