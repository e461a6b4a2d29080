package buildmanifest

import "fmt"

// MissingDescription is returned when a target or product the graph names
// has no corresponding description in the plan passed to Generate. Plan
// construction and manifest generation must always be called with the same
// graph; a mismatch is a programming error, not a data problem, so
// generation is all-or-nothing rather than degrading gracefully.
type MissingDescription struct {
	Kind string // "target" or "product"
	ID   int
}

func (e *MissingDescription) Error() string {
	return fmt.Sprintf("build manifest: no build description for %s %d", e.Kind, e.ID)
}
