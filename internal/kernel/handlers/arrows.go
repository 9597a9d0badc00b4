package handlers

// NewArrow builds an arrow: the sum of headCells equals the sum of
// lineCells, realized as Sum(target=0, +1 on head, -1 on
// line) — one instance of the principal handler, not a new propagator.
func NewArrow(headCells, lineCells []int) *Sum {
	return NewDoubleArrow(headCells, lineCells)
}

// NewDoubleArrow builds a double arrow: the two (or more) bulb cells'
// values sum to the line cells' sum.
func NewDoubleArrow(bulbCells, lineCells []int) *Sum {
	var parts []CoeffCell
	for _, c := range bulbCells {
		parts = append(parts, CoeffCell{Coeff: 1, Cell: c})
	}
	for _, c := range lineCells {
		parts = append(parts, CoeffCell{Coeff: -1, Cell: c})
	}
	return NewSum(0, parts)
}

// NewPillArrow builds an arrow whose head is a two-digit "pill" (tensCell
// holding the tens digit, onesCell the ones digit), equal to the line sum.
func NewPillArrow(tensCell, onesCell int, lineCells []int) *Sum {
	parts := []CoeffCell{{Coeff: 10, Cell: tensCell}, {Coeff: 1, Cell: onesCell}}
	for _, c := range lineCells {
		parts = append(parts, CoeffCell{Coeff: -1, Cell: c})
	}
	return NewSum(0, parts)
}

// NewSumLine builds a line whose cells must sum to a fixed target (a
// simpler cousin of Arrow with no head cell, used for "sum line" clues).
func NewSumLine(cells []int, target int) *Sum {
	return NewCage(target, cells)
}

// NewLittleKiller builds a diagonal-sum clue: the cells along the
// indicated diagonal sum to target, with no enclosing house all-different
// implied (the diagonal itself is usually not a house).
func NewLittleKiller(cells []int, target int) *Sum {
	return NewCage(target, cells)
}
