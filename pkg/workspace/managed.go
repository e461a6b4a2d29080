package workspace

import (
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/pins"
)

// DependencyState discriminates the three states a ManagedDependency can be
// in.
type DependencyState int

const (
	StateCheckout DependencyState = iota
	StateEdited
	StateLocal
)

func (s DependencyState) String() string {
	switch s {
	case StateCheckout:
		return "checkout"
	case StateEdited:
		return "edited"
	case StateLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ManagedDependency is the Workspace's per-identity lifecycle record.
// BasedOn carries the pre-edit snapshot so Unedit can restore it exactly.
type ManagedDependency struct {
	Reference ident.Reference
	Subpath   string
	State     DependencyState
	Checkout  pins.CheckoutState // meaningful when State == StateCheckout
	EditPath  string             // meaningful when State == StateEdited; empty means the default edits/<identity> path
	BasedOn   *ManagedDependency
}
