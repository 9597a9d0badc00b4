package solverapi

import (
	"fmt"
	"strconv"

	"sudokusolver/internal/kernel/engine"
	"sudokusolver/internal/kernel/handler"
	"sudokusolver/internal/kernel/handlers"
	"sudokusolver/internal/kernel/handlerset"
	"sudokusolver/internal/kernel/lookup"
	"sudokusolver/internal/kernel/shape"
)

// Build translates spec into a running Solver: parses the grid
// shape, wires every house and clued constraint into handlers, applies
// givens, runs the optimizer, and brings the engine to its first
// propagation fixed point.
func Build(spec ConstraintSpec, debug DebugOptions) (*Solver, error) {
	sh, err := shape.ParseTag(spec.ShapeTag)
	if err != nil {
		return nil, &SpecError{ConstraintIndex: -1, Msg: err.Error()}
	}

	var built []handler.Handler
	houses := sh.Rows()
	houses = append(houses, sh.Cols()...)
	if sh.HasBoxes() && !spec.NoBoxes {
		houses = append(houses, sh.Boxes()...)
	}
	for _, house := range houses {
		built = append(built, handlers.NewAllDifferent(house))
	}
	if spec.Diagonals && sh.NumRows == sh.NumCols {
		var d1, d2 []int
		for i := 0; i < sh.NumRows; i++ {
			d1 = append(d1, sh.CellIndex(i, i))
			d2 = append(d2, sh.CellIndex(i, sh.NumCols-1-i))
		}
		built = append(built, handlers.NewAllDifferent(d1), handlers.NewAllDifferent(d2))
	}
	for _, region := range spec.ExtraRegions {
		cells, err := cellsOf(sh, -1, "extraRegion", region)
		if err != nil {
			return nil, err
		}
		built = append(built, handlers.NewAllDifferent(cells))
	}
	// layoutHandlers is every house/jigsaw/diagonal AllDifferent built so
	// far, before any clued constraint — exactly the subset
	// ValidateLayout solves against.
	layoutHandlers := append([]handler.Handler(nil), built...)

	for idx, c := range spec.Constraints {
		hs, err := buildConstraint(sh, idx, c)
		if err != nil {
			return nil, err
		}
		built = append(built, hs...)
	}

	g := engine.NewGrid(sh)
	for cellID, v := range spec.Givens {
		cell, err := sh.ParseCellID(cellID)
		if err != nil {
			return nil, specErr(-1, "givens", cellID, err.Error())
		}
		if !g.Set(cell, lookup.Bit(v)) {
			return nil, specErr(-1, "givens", cellID, "value conflicts with an already-set given")
		}
	}

	alloc := engine.NewScratchAllocator()
	set, ok := handlerset.New(sh, g, alloc, built)
	if !ok {
		// Infeasible from the start: the solver is still constructed;
		// every search call against it reports "no solution".
		return &Solver{shape: sh, feasible: false, layoutHandlers: layoutHandlers}, nil
	}

	opt := handlerset.NewOptimizer(sh, set.Excl)
	preOpt := len(set.Handlers)
	feasible := opt.Run(set, g)
	// Handlers the optimizer synthesized were appended after the main
	// initialization pass; they still need their own Initialize (tables,
	// exclusion-group partitions) before the engine runs them.
	for _, h := range set.Handlers[preOpt:] {
		if !h.Initialize(g, set.Excl, sh, alloc) {
			feasible = false
		}
	}

	eng, ok := engine.New(set, g)
	if debug.LogHandlerCount {
		eng.HandlerCount = len(set.Handlers)
	}
	if !ok || !feasible {
		return &Solver{engine: eng, shape: sh, feasible: false, layoutHandlers: layoutHandlers}, nil
	}
	return &Solver{engine: eng, shape: sh, feasible: true, layoutHandlers: layoutHandlers}, nil
}

func cellsOf(sh *shape.Shape, constraintIdx int, kind string, ids []string) ([]int, error) {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		cell, err := sh.ParseCellID(id)
		if err != nil {
			return nil, specErr(constraintIdx, kind, id, err.Error())
		}
		out = append(out, cell)
	}
	return out, nil
}

func buildConstraint(sh *shape.Shape, idx int, c Constraint) ([]handler.Handler, error) {
	cells, err := cellsOf(sh, idx, c.Type, c.Cells)
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case "cage", "killercage":
		// A cage carries an implicit all-different alongside its sum. The
		// AllDifferent registers the cage's cells in the exclusion graph
		// during the first init pass, so the Sum sees them as one exclusion
		// group even when they share no house.
		if len(c.Coefficients) == 0 {
			return []handler.Handler{handlers.NewAllDifferent(cells), handlers.NewCage(c.Target, cells)}, nil
		}
		return []handler.Handler{handlers.NewAllDifferent(cells), handlers.NewSum(c.Target, coeffCells(c.Coefficients, cells))}, nil

	case "x", "v":
		// X/V dots: the two marked cells sum to 10 (X) or 5 (V).
		if len(cells) != 2 {
			return nil, specErr(idx, c.Type, "", "x/v constraint needs exactly 2 cells")
		}
		target := 10
		if c.Type == "v" {
			target = 5
		}
		return []handler.Handler{handlers.NewCage(target, cells)}, nil

	case "littlekiller":
		return []handler.Handler{handlers.NewLittleKiller(cells, c.Target)}, nil
	case "sumline":
		return []handler.Handler{handlers.NewSumLine(cells, c.Target)}, nil

	case "arrow":
		head, err := cellsOf(sh, idx, c.Type, c.HeadCells)
		if err != nil {
			return nil, err
		}
		return []handler.Handler{handlers.NewArrow(head, cells)}, nil
	case "doublearrow":
		head, err := cellsOf(sh, idx, c.Type, c.HeadCells)
		if err != nil {
			return nil, err
		}
		return []handler.Handler{handlers.NewDoubleArrow(head, cells)}, nil
	case "pillarrow":
		tens, err := sh.ParseCellID(c.TensCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.TensCell, err.Error())
		}
		ones, err := sh.ParseCellID(c.OnesCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.OnesCell, err.Error())
		}
		return []handler.Handler{handlers.NewPillArrow(tens, ones, cells)}, nil

	case "thermometer":
		return handlers.NewThermometer(cells), nil
	case "whisper":
		return handlers.NewWhisper(cells, c.Param), nil
	case "renban":
		return handlers.NewRenban(cells), nil
	case "palindrome":
		return handlers.NewPalindrome(cells), nil

	case "entropic":
		return []handler.Handler{handlers.NewEntropicLine(cells, sh.NumValues)}, nil
	case "modular":
		m := c.Modulus
		if m == 0 {
			m = c.Param
		}
		if m < 2 {
			return nil, specErr(idx, c.Type, "", "modular line needs a modulus of at least 2")
		}
		return []handler.Handler{handlers.NewModularLine(cells, m)}, nil

	case "binary":
		rel, err := relationOf(c)
		if err != nil {
			return nil, specErr(idx, c.Type, "", err.Error())
		}
		if len(cells) != 2 {
			return nil, specErr(idx, c.Type, "", "binary constraint needs exactly 2 cells")
		}
		return []handler.Handler{handlers.NewBinaryConstraint(cells[0], cells[1], rel)}, nil
	case "pairwise":
		rel, err := relationOf(c)
		if err != nil {
			return nil, specErr(idx, c.Type, "", err.Error())
		}
		return []handler.Handler{handlers.NewBinaryPairwise(cells, rel, rel.Key == "eq")}, nil

	case "boolcompose":
		rel, err := relationOf(c)
		if err != nil {
			return nil, specErr(idx, c.Type, "", err.Error())
		}
		if len(cells) == 2 {
			return []handler.Handler{handlers.NewBinaryConstraint(cells[0], cells[1], rel)}, nil
		}
		return []handler.Handler{handlers.NewBinaryPairwise(cells, rel, rel.Key == "eq")}, nil

	case "sandwich":
		return []handler.Handler{handlers.NewSandwich(cells, c.Target, sh.NumValues)}, nil
	case "lunchbox":
		return []handler.Handler{handlers.NewLunchbox(cells, c.LowValue, c.HighValue, c.Target)}, nil

	case "skyscraper":
		return []handler.Handler{handlers.NewSkyscraper(cells, c.Target)}, nil
	case "hiddenskyscraper":
		return []handler.Handler{handlers.NewHiddenSkyscraper(cells, c.Target)}, nil
	case "xsum":
		return []handler.Handler{handlers.NewXSum(cells, c.Target)}, nil
	case "numberedroom":
		return []handler.Handler{handlers.NewNumberedRoom(cells, c.Target)}, nil

	case "quad":
		return []handler.Handler{handlers.NewQuad(cells, c.Values)}, nil

	case "indexing":
		return []handler.Handler{handlers.NewIndexing(cells, c.IndexPos, c.ValueIndexing, c.RowNumber)}, nil

	case "between":
		low, err := sh.ParseCellID(c.LowCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.LowCell, err.Error())
		}
		high, err := sh.ParseCellID(c.HighCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.HighCell, err.Error())
		}
		return []handler.Handler{handlers.NewBetween(low, high, cells)}, nil
	case "lockout":
		low, err := sh.ParseCellID(c.LowCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.LowCell, err.Error())
		}
		high, err := sh.ParseCellID(c.HighCell)
		if err != nil {
			return nil, specErr(idx, c.Type, c.HighCell, err.Error())
		}
		return []handler.Handler{handlers.NewLockout(low, high, cells, c.MinGap)}, nil

	case "antiknight":
		return handlers.NewPairwiseConstraints(cellPairs(sh.KnightPairs()), handlers.RelNotEqual), nil
	case "antiking":
		return handlers.NewPairwiseConstraints(cellPairs(sh.KingPairs()), handlers.RelNotEqual), nil
	case "nonconsecutive":
		return handlers.NewPairwiseConstraints(cellPairs(sh.OrthogonalPairs()), handlers.RelNonConsecutive), nil
	case "taxicab":
		// Every orthogonally adjacent pair must differ by at least Param (the
		// "taxicab" variant's minimum-gap-by-distance rule, specialized to
		// distance-1 neighbors; kropki dots use type "binary" with relation
		// "kropkiwhite"/"kropkiblack" on the two specific dotted cells instead,
		// since dots are a per-clue marker, not a grid-wide rule).
		return handlers.NewPairwiseConstraints(cellPairs(sh.OrthogonalPairs()), handlers.RelDifferBy(c.Param)), nil

	case "dfaline":
		transitions := map[int]map[int][]int{}
		for fromStr, byValue := range c.Transitions {
			from, _ := strconv.Atoi(fromStr)
			transitions[from] = map[int][]int{}
			for valStr, nexts := range byValue {
				val, _ := strconv.Atoi(valStr)
				transitions[from][val] = nexts
			}
		}
		accept := map[int]bool{}
		for _, s := range c.AcceptStates {
			accept[s] = true
		}
		return []handler.Handler{handlers.NewDFALine(cells, transitions, c.StartStates, accept)}, nil

	default:
		return nil, specErr(idx, c.Type, "", "unknown constraint type")
	}
}

// cellPairs converts shape's plain-int adjacency pairs into handlers.CellPair,
// the format NewPairwiseConstraints expects.
func cellPairs(pairs [][2]int) []handlers.CellPair {
	out := make([]handlers.CellPair, len(pairs))
	for i, p := range pairs {
		out[i] = handlers.CellPair{A: p[0], B: p[1]}
	}
	return out
}

func coeffCells(coeffs []int, cells []int) []handlers.CoeffCell {
	out := make([]handlers.CoeffCell, len(cells))
	for i, c := range cells {
		coeff := 1
		if i < len(coeffs) {
			coeff = coeffs[i]
		}
		out[i] = handlers.CoeffCell{Coeff: coeff, Cell: c}
	}
	return out
}

// relationOf resolves c's relation, recursing through BoolOp compositions
// ("and"/"or"/"not"/"xor" over SubRelations) down to the primitive
// relations a Relation field names directly. A sub-relation is itself a
// Constraint carrying only Relation/Param/BoolOp/SubRelations — its Cells
// are never consulted, since a composed relation always applies over the
// cells of the enclosing "binary"/"pairwise"/"boolcompose" constraint.
func relationOf(c Constraint) (handlers.Relation, error) {
	if c.BoolOp != "" {
		return composedRelation(c)
	}
	switch c.Relation {
	case "lt":
		return handlers.RelLessThan, nil
	case "eq":
		return handlers.RelEqual, nil
	case "neq":
		return handlers.RelNotEqual, nil
	case "differby":
		return handlers.RelDifferBy(c.Param), nil
	case "nonconsecutive":
		return handlers.RelNonConsecutive, nil
	case "kropkiwhite":
		return handlers.RelKropkiWhite, nil
	case "kropkiblack":
		return handlers.RelKropkiBlack(c.Param), nil
	case "kropki":
		return handlers.RelConsecutiveOrRatio(c.Param), nil
	default:
		return handlers.Relation{}, specErr(-1, "binary", "", "unknown relation "+c.Relation)
	}
}

// composedRelation builds the Relation for a BoolOp node, recursing into
// each sub-relation via relationOf so "and"/"or"/"not"/"xor" nest
// arbitrarily deep.
func composedRelation(c Constraint) (handlers.Relation, error) {
	switch c.BoolOp {
	case "not":
		if len(c.SubRelations) != 1 {
			return handlers.Relation{}, fmt.Errorf("boolOp \"not\" needs exactly one sub-relation")
		}
		sub, err := relationOf(c.SubRelations[0])
		if err != nil {
			return handlers.Relation{}, err
		}
		return handlers.RelNot(sub), nil

	case "and":
		if len(c.SubRelations) == 0 {
			return handlers.Relation{}, fmt.Errorf("boolOp \"and\" needs at least one sub-relation")
		}
		preds, key, err := relationPreds(c.SubRelations, "&")
		if err != nil {
			return handlers.Relation{}, err
		}
		return handlers.RelAllOf(key, preds...), nil

	case "or":
		if len(c.SubRelations) == 0 {
			return handlers.Relation{}, fmt.Errorf("boolOp \"or\" needs at least one sub-relation")
		}
		preds, key, err := relationPreds(c.SubRelations, "|")
		if err != nil {
			return handlers.Relation{}, err
		}
		return handlers.RelAny(key, preds...), nil

	case "xor":
		if len(c.SubRelations) != 2 {
			return handlers.Relation{}, fmt.Errorf("boolOp \"xor\" needs exactly two sub-relations")
		}
		a, err := relationOf(c.SubRelations[0])
		if err != nil {
			return handlers.Relation{}, err
		}
		b, err := relationOf(c.SubRelations[1])
		if err != nil {
			return handlers.Relation{}, err
		}
		return handlers.RelXor(a.Key+"^"+b.Key, a.Pred, b.Pred), nil

	default:
		return handlers.Relation{}, fmt.Errorf("unknown boolean operator %q", c.BoolOp)
	}
}

func relationPreds(subs []Constraint, sep string) ([]func(a, b int) bool, string, error) {
	preds := make([]func(a, b int) bool, 0, len(subs))
	key := ""
	for i, sc := range subs {
		rel, err := relationOf(sc)
		if err != nil {
			return nil, "", err
		}
		preds = append(preds, rel.Pred)
		if i > 0 {
			key += sep
		}
		key += rel.Key
	}
	return preds, key, nil
}
