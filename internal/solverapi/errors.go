package solverapi

import "fmt"

// SpecError reports a problem translating a ConstraintSpec into a solver,
// naming which constraint (by index and type) and cell reference caused
// it, so a client UI can point a user back at the offending clue.
type SpecError struct {
	ConstraintIndex int    // -1 when the error isn't specific to one constraint
	ConstraintType  string
	CellID          string
	Msg             string
}

func (e *SpecError) Error() string {
	switch {
	case e.ConstraintIndex >= 0 && e.CellID != "":
		return fmt.Sprintf("solverapi: constraint #%d (%s): cell %q: %s", e.ConstraintIndex, e.ConstraintType, e.CellID, e.Msg)
	case e.ConstraintIndex >= 0:
		return fmt.Sprintf("solverapi: constraint #%d (%s): %s", e.ConstraintIndex, e.ConstraintType, e.Msg)
	default:
		return fmt.Sprintf("solverapi: %s", e.Msg)
	}
}

func specErr(idx int, kind, cellID, msg string) *SpecError {
	return &SpecError{ConstraintIndex: idx, ConstraintType: kind, CellID: cellID, Msg: msg}
}
