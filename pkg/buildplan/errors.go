package buildplan

import "fmt"

// MissingNode is returned when plan construction needs a target or product
// that is not present in the graph it was given. A well-formed graph never
// triggers this; it reflects a caller passing a Plan and a Graph that
// disagree, which is always a programming error.
type MissingNode struct {
	Kind string // "target" or "product"
	ID   int
}

func (e *MissingNode) Error() string {
	return fmt.Sprintf("build plan: %s %d is not present in the graph", e.Kind, e.ID)
}
