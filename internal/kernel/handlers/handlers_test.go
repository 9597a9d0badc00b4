package handlers

import (
	"testing"

	"sudokusolver/internal/kernel/exclusions"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// testGrid is a minimal handler.Grid for exercising propagators directly.
type testGrid struct {
	masks []lookup.Mask
}

func newTestGrid(numCells, numValues int) *testGrid {
	g := &testGrid{masks: make([]lookup.Mask, numCells)}
	full := lookup.Full(numValues)
	for i := range g.masks {
		g.masks[i] = full
	}
	return g
}

func (g *testGrid) Get(cell int) lookup.Mask { return g.masks[cell] }
func (g *testGrid) Set(cell int, m lookup.Mask) bool {
	g.masks[cell] = m
	return !m.IsEmpty()
}
func (g *testGrid) NumCells() int { return len(g.masks) }

// testAcc records AddForCell notifications.
type testAcc struct {
	cells []int
}

func (a *testAcc) AddForCell(cell int) { a.cells = append(a.cells, cell) }

func notified(a *testAcc, cell int) bool {
	for _, c := range a.cells {
		if c == cell {
			return true
		}
	}
	return false
}

func TestAllDifferentNakedSingle(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(9)
	h := NewAllDifferent([]int{0, 1, 2, 3, 4, 5, 6, 7, 8})
	if !h.Initialize(nil, excl, sh, nil) {
		t.Fatal("Initialize failed")
	}

	g := newTestGrid(9, 9)
	g.masks[0] = lookup.Bit(5)
	acc := &testAcc{}
	if !h.EnforceConsistency(g, acc) {
		t.Fatal("EnforceConsistency reported wipeout")
	}
	for c := 1; c < 9; c++ {
		if g.Get(c).Has(5) {
			t.Fatalf("cell %d still has 5 after naked single", c)
		}
		if !notified(acc, c) {
			t.Fatalf("cell %d was mutated without an accumulator notification", c)
		}
	}
}

func TestAllDifferentHiddenSingle(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	excl := exclusions.New(4)
	h := NewAllDifferent([]int{0, 1, 2, 3})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(4, 4)
	// Value 4 only remains possible in cell 3.
	for c := 0; c < 3; c++ {
		g.masks[c] = g.masks[c].Without(4)
	}
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if v, ok := g.Get(3).Singleton(); !ok || v != 4 {
		t.Fatalf("cell 3 = %v, want hidden single 4", g.Get(3))
	}
}

func TestAllDifferentMissingValueWipesOut(t *testing.T) {
	sh := shape.Default(4, 4, 4)
	excl := exclusions.New(4)
	h := NewAllDifferent([]int{0, 1, 2, 3})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(4, 4)
	for c := 0; c < 4; c++ {
		g.masks[c] = g.masks[c].Without(2)
	}
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: value 2 has no host in a full house")
	}
}

func TestBinaryConstraintLessThan(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(2)
	h := NewBinaryConstraint(0, 1, RelLessThan)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(2, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if g.Get(0).Has(9) {
		t.Fatalf("a = %v still allows 9, but a < b demands a <= 8", g.Get(0))
	}
	if g.Get(1).Has(1) {
		t.Fatalf("b = %v still allows 1, but a < b demands b >= 2", g.Get(1))
	}
}

func TestCageRestrictsToSmallestTriple(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	excl.AddAllDifferent([]int{0, 1, 2})

	h := NewCage(6, []int{0, 1, 2})
	if !h.Initialize(nil, excl, sh, nil) {
		t.Fatal("Initialize failed")
	}

	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	want := lookup.FromSlice([]int{1, 2, 3})
	for c := 0; c < 3; c++ {
		if g.Get(c) != want {
			t.Fatalf("cell %d = %v, want %v", c, g.Get(c), want)
		}
	}
}

func TestCageImpossibleTargetFails(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	excl.AddAllDifferent([]int{0, 1, 2})

	h := NewCage(100, []int{0, 1, 2})
	h.Initialize(nil, excl, sh, nil)
	g := newTestGrid(81, 9)
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: 3 distinct values can't sum to 100")
	}
}

func TestSumIsReducer(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	excl.AddAllDifferent([]int{0, 1, 2, 3})

	h := NewCage(20, []int{0, 1, 2, 3})
	h.Initialize(nil, excl, sh, nil)
	g := newTestGrid(81, 9)
	before := append([]lookup.Mask(nil), g.masks...)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	for c := 0; c < 4; c++ {
		if g.Get(c)&^before[c] != 0 {
			t.Fatalf("cell %d gained candidates: %v -> %v", c, before[c], g.Get(c))
		}
	}
}

func TestArrowBoundsHeadAndShaft(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)

	// head = shaft sum over two cells; no shared house, so repeats allowed.
	h := NewArrow([]int{0}, []int{1, 2})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if g.Get(0).Has(1) {
		t.Fatalf("head = %v still allows 1, but the shaft sums to at least 2", g.Get(0))
	}
	if g.Get(1).Has(9) || g.Get(2).Has(9) {
		t.Fatal("shaft cells still allow 9, but the head caps them at 8")
	}
}

func TestPillArrowTwoDigitHead(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)

	// 10*tens + ones = sum of three shaft cells; shaft max is 27, so the
	// tens digit can only be 1 or 2.
	h := NewPillArrow(0, 1, []int{2, 3, 4})
	h.Initialize(nil, excl, sh, nil)
	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	for v := 3; v <= 9; v++ {
		if g.Get(0).Has(v) {
			t.Fatalf("tens cell = %v still allows %d, want only {1,2}", g.Get(0), v)
		}
	}
}

func TestRenbanConsecutiveSet(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	g := newTestGrid(81, 9)

	hs := NewRenban([]int{0, 1, 2})
	for _, h := range hs {
		if !h.Initialize(g, excl, sh, nil) {
			t.Fatal("Initialize failed")
		}
	}
	// Fix one cell to 5: a 3-cell renban through 5 can only use 3..7.
	g.masks[0] = lookup.Bit(5)
	for _, h := range hs {
		if !h.EnforceConsistency(g, &testAcc{}) {
			t.Fatal("unexpected wipeout")
		}
	}
	for _, c := range []int{1, 2} {
		for _, v := range []int{1, 2, 8, 9} {
			if g.Get(c).Has(v) {
				t.Fatalf("cell %d still allows %d, outside any consecutive triple through 5", c, v)
			}
		}
	}
}

func TestBetweenBracketsMiddle(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewBetween(0, 1, []int{2, 3})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(3)
	g.masks[1] = lookup.Bit(7)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	want := lookup.FromSlice([]int{4, 5, 6})
	for _, c := range []int{2, 3} {
		if g.Get(c) != want {
			t.Fatalf("middle cell %d = %v, want %v", c, g.Get(c), want)
		}
	}
}

func TestLockoutExcludesMiddleBand(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewLockout(0, 1, []int{2}, 4)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(5)
	g.masks[1] = lookup.Bit(9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	for _, v := range []int{6, 7, 8} {
		if g.Get(2).Has(v) {
			t.Fatalf("middle cell still allows %d, inside the locked-out band (5,9)", v)
		}
	}
	for _, v := range []int{1, 5, 9} {
		if !g.Get(2).Has(v) {
			t.Fatalf("middle cell lost %d, which lies outside the band", v)
		}
	}
}

func TestLockoutKeepsValuesOutsideSomeAssignment(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewLockout(0, 1, []int{2}, 4)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	// Endpoints could be (1,9) or (5,9): middle value 2 is inside (1,9)
	// but outside (5,9), so it must survive.
	g.masks[0] = lookup.FromSlice([]int{1, 5})
	g.masks[1] = lookup.Bit(9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if !g.Get(2).Has(2) {
		t.Fatal("middle cell lost 2, valid when the endpoints are 5 and 9")
	}
}

func TestWhisperAdjacentGap(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	g := newTestGrid(81, 9)

	hs := NewWhisper([]int{0, 1}, 4)
	for _, h := range hs {
		h.Initialize(g, excl, sh, nil)
	}
	g.masks[0] = lookup.Bit(5)
	for _, h := range hs {
		if !h.EnforceConsistency(g, &testAcc{}) {
			t.Fatal("unexpected wipeout")
		}
	}
	// Only values at distance >= 4 from 5 survive: 1 and 9.
	if g.Get(1) != lookup.FromSlice([]int{1, 9}) {
		t.Fatalf("neighbor = %v, want {1,9}", g.Get(1))
	}
}

func TestPalindromeMirrorsMasks(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	g := newTestGrid(81, 9)

	hs := NewPalindrome([]int{0, 1, 2, 3})
	for _, h := range hs {
		h.Initialize(g, excl, sh, nil)
	}
	g.masks[0] = lookup.FromSlice([]int{2, 4})
	for _, h := range hs {
		if !h.EnforceConsistency(g, &testAcc{}) {
			t.Fatal("unexpected wipeout")
		}
	}
	if g.Get(3) != lookup.FromSlice([]int{2, 4}) {
		t.Fatalf("mirror cell = %v, want {2,4}", g.Get(3))
	}
}

func TestEntropicWindowNeedsEveryBand(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewEntropicLine([]int{0, 1, 2}, 9)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(1) // low band
	g.masks[1] = lookup.Bit(2) // low band again
	// Cell 2 can't supply both mid and high at once.
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: two low-band cells in a window of three")
	}
}

func TestModularWindowResidues(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewModularLine([]int{0, 1, 2}, 3)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(1) // residue 0
	g.masks[1] = lookup.Bit(5) // residue 1
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	// Cell 2 must carry the remaining residue class (2): values 3, 6, 9.
	if g.Get(2) != lookup.FromSlice([]int{3, 6, 9}) {
		t.Fatalf("cell 2 = %v, want {3,6,9}", g.Get(2))
	}
}

func TestQuadForcesOnlyHost(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	h := NewQuad([]int{0, 1, 9, 10}, []int{5})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	for _, c := range []int{0, 1, 9} {
		g.masks[c] = g.masks[c].Without(5)
	}
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if v, ok := g.Get(10).Singleton(); !ok || v != 5 {
		t.Fatalf("cell 10 = %v, want forced 5", g.Get(10))
	}
}

func TestIndexingPinsTarget(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	row := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewIndexing(row, 0, false, 1)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(3)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if v, ok := g.Get(2).Singleton(); !ok || v != 1 {
		t.Fatalf("indexed cell = %v, want forced 1", g.Get(2))
	}
}

func TestNumberedRoomForcesPosition(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewNumberedRoom(cells, 7)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(4)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if v, ok := g.Get(3).Singleton(); !ok || v != 7 {
		t.Fatalf("room cell = %v, want forced 7", g.Get(3))
	}
}

func TestXSumPrunesInfeasibleControls(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewXSum(cells, 6)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	// A control of 1 makes the x-sum just itself (1 != 6); a control of 6
	// already contributes 6 with five more cells to add. A control of 2
	// works: 2 + 4 = 6.
	if g.Get(0).Has(1) || g.Get(0).Has(6) {
		t.Fatalf("control = %v still allows an infeasible first value", g.Get(0))
	}
	if !g.Get(0).Has(2) {
		t.Fatalf("control = %v lost 2, which sandwiches 2+4=6", g.Get(0))
	}
}

func TestSkyscraperImpossibleCountFails(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2}
	h := NewSkyscraper(cells, 3)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(9) // tallest first: only 1 peak possible
	g.masks[1] = lookup.Bit(5)
	g.masks[2] = lookup.Bit(3)
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: 3 peaks demanded but the tallest is first")
	}
}

func TestSandwichInfeasibleTargetFails(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewSandwich(cells, 35, 9)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	// Crusts adjacent: filling sums to 0, never 35.
	g.masks[0] = lookup.Bit(1)
	g.masks[1] = lookup.Bit(9)
	for c := 2; c < 9; c++ {
		g.masks[c] = lookup.Full(9).Without(1).Without(9)
	}
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: adjacent crusts can't sandwich a sum of 35")
	}
}

func TestDFALineForwardBackwardPruning(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	// Two-state automaton: state 0 consumes an odd value to reach state 1,
	// state 1 consumes an even value to return to 0. Accept only state 0,
	// so a 2-cell line must be (odd, even).
	transitions := map[int]map[int][]int{
		0: {1: {1}, 3: {1}, 5: {1}, 7: {1}, 9: {1}},
		1: {2: {0}, 4: {0}, 6: {0}, 8: {0}},
	}
	h := NewDFALine([]int{0, 1}, transitions, []int{0}, map[int]bool{0: true})
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	if g.Get(0) != lookup.FromSlice([]int{1, 3, 5, 7, 9}) {
		t.Fatalf("cell 0 = %v, want odd values only", g.Get(0))
	}
	if g.Get(1) != lookup.FromSlice([]int{2, 4, 6, 8}) {
		t.Fatalf("cell 1 = %v, want even values only", g.Get(1))
	}
}

func TestFullGridRequiredValuesCapsOccurrences(t *testing.T) {
	sh := shape.New(2, 3, 3, 0, 0)
	excl := exclusions.New(6)
	all := []int{0, 1, 2, 3, 4, 5}
	h := NewFullGridRequiredValues(all, 2)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(6, 3)
	g.masks[0] = lookup.Bit(1)
	g.masks[1] = lookup.Bit(1)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("unexpected wipeout")
	}
	for c := 2; c < 6; c++ {
		if g.Get(c).Has(1) {
			t.Fatalf("cell %d still allows 1, but its occurrence cap of 2 is reached", c)
		}
	}
}

func TestFullGridRequiredValuesDetectsStarvedValue(t *testing.T) {
	sh := shape.New(2, 3, 3, 0, 0)
	excl := exclusions.New(6)
	all := []int{0, 1, 2, 3, 4, 5}
	h := NewFullGridRequiredValues(all, 2)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(6, 3)
	for c := 0; c < 5; c++ {
		g.masks[c] = g.masks[c].Without(3)
	}
	// Value 3 needs 2 hosts but only one cell still admits it.
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("expected failure: value 3 can no longer reach its required count")
	}
}

func TestSkyscraperSolvedLineMustMatchCount(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2}

	// 3, 5, 9 near-to-far shows exactly 3 peaks.
	solved := []lookup.Mask{lookup.Bit(3), lookup.Bit(5), lookup.Bit(9)}

	h := NewSkyscraper(cells, 2)
	h.Initialize(nil, excl, sh, nil)
	g := newTestGrid(81, 9)
	copy(g.masks, solved)
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("a solved line with 3 peaks must reject a count-2 clue")
	}

	h = NewSkyscraper(cells, 3)
	h.Initialize(nil, excl, sh, nil)
	g = newTestGrid(81, 9)
	copy(g.masks, solved)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("a solved line with 3 peaks must accept a count-3 clue")
	}
}

func TestXSumSolvedPrefixMustMatchTarget(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewXSum(cells, 10)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	g.masks[0] = lookup.Bit(3)
	g.masks[1] = lookup.Bit(5)
	g.masks[2] = lookup.Bit(4)
	// Prefix is fully fixed at 3+5+4 = 12, not 10.
	if h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("a fixed prefix summing to 12 must reject a target of 10")
	}
}

func TestModularLargeModulusWindows(t *testing.T) {
	sh := shape.Default(9, 9, 9)
	excl := exclusions.New(81)
	cells := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	h := NewModularLine(cells, 8)
	h.Initialize(nil, excl, sh, nil)

	g := newTestGrid(81, 9)
	if !h.EnforceConsistency(g, &testAcc{}) {
		t.Fatal("an open line must stay feasible under a modulus-8 window")
	}
}
