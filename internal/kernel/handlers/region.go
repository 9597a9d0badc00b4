package handlers

import (
	"fmt"

	"sudokusolver/internal/kernel/handler"
)

// CellPair is an unordered pair of cell indices, used by the adjacency
// builders below to describe geometric relations (anti-knight, anti-king,
// taxicab distance, orthogonal consecutive) computed by the caller from
// the grid's shape.
type CellPair struct{ A, B int }

// NewPairwiseConstraints builds one BinaryConstraint per pair, all sharing
// rel — the common shape for anti-knight, anti-king, non-consecutive
// orthogonal, and taxicab-distance constraints, which differ only
// in which pairs the constraint-spec builder computes from the grid's
// adjacency, not in the relation itself.
func NewPairwiseConstraints(pairs []CellPair, rel Relation) []handler.Handler {
	out := make([]handler.Handler, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, NewBinaryConstraint(p.A, p.B, rel))
	}
	return out
}

// RelNonConsecutive is the "orthogonally adjacent cells may not hold
// consecutive digits" relation (anti-consecutive variant).
var RelNonConsecutive = Relation{
	Key: "nonconsecutive",
	Pred: func(a, b int) bool {
		d := a - b
		if d < 0 {
			d = -d
		}
		return d != 1
	},
}

// RelKropkiWhite is the white-dot Kropki relation: the two cells hold
// consecutive digits.
var RelKropkiWhite = Relation{
	Key: "kropkiwhite",
	Pred: func(a, b int) bool {
		d := a - b
		if d < 0 {
			d = -d
		}
		return d == 1
	},
}

// RelKropkiBlack is the black-dot Kropki relation: one cell's value is
// ratio times the other's.
func RelKropkiBlack(ratio int) Relation {
	return Relation{
		Key: fmt.Sprintf("kropkiblack%d", ratio),
		Pred: func(a, b int) bool {
			return a == b*ratio || b == a*ratio
		},
	}
}

// RelConsecutiveOrRatio combines both Kropki dot styles into one relation
// — used only when a caller genuinely wants "consecutive or ratio r" as a
// single clue; a real white or black dot should use RelKropkiWhite or
// RelKropkiBlack(ratio) instead, since a given dot is one or the other,
// never both.
func RelConsecutiveOrRatio(ratio int) Relation {
	return RelAny("kropki", RelKropkiWhite.Pred, RelKropkiBlack(ratio).Pred)
}
