package workspace

import "fmt"

// EditConflictReason is the specific obstacle that blocked an edit/unedit
// transition.
type EditConflictReason int

const (
	AlreadyEdited EditConflictReason = iota
	DirtyWorkTree
	UnpushedCommits
)

func (r EditConflictReason) String() string {
	switch r {
	case AlreadyEdited:
		return "already edited"
	case DirtyWorkTree:
		return "dirty work tree"
	case UnpushedCommits:
		return "unpushed commits"
	default:
		return "unknown"
	}
}

// EditConflict reports that an edit/unedit transition could not proceed.
type EditConflict struct {
	Identity string
	Reason   EditConflictReason
}

func (e *EditConflict) Error() string {
	return fmt.Sprintf("cannot edit %s: %s", e.Identity, e.Reason)
}

// MissingEditedCheckout reports that an edited dependency's working tree is
// gone. Recoverable is true when a BasedOn snapshot exists to fall back to.
type MissingEditedCheckout struct {
	Identity    string
	Recoverable bool
}

func (e *MissingEditedCheckout) Error() string {
	return fmt.Sprintf("edited checkout for %s is missing (recoverable=%v)", e.Identity, e.Recoverable)
}

// LocalDependencyCannotBeEdited reports an edit attempt on an already-local
// (on-disk, unversioned) dependency.
type LocalDependencyCannotBeEdited struct {
	Identity string
}

func (e *LocalDependencyCannotBeEdited) Error() string {
	return fmt.Sprintf("%s is a local dependency and cannot be edited", e.Identity)
}

// RevisionDependsOnLocal reports that a pinned revision requirement resolved
// to a dependency that is only available as a local package.
type RevisionDependsOnLocal struct {
	Identity string
}

func (e *RevisionDependsOnLocal) Error() string {
	return fmt.Sprintf("revision requirement on %s cannot be satisfied by a local dependency", e.Identity)
}
