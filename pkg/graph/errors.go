package graph

import "fmt"

// Diagnostic kind tags emitted into the diag.Sink passed to Load. These
// name the failure categories without aborting graph construction; Load
// still returns a (possibly partial) *Graph alongside them.
const (
	KindCycleDetected                    = "CycleDetected"
	KindDuplicateProduct                 = "DuplicateProduct"
	KindDuplicateTarget                  = "DuplicateTarget"
	KindNoModules                        = "NoModules"
	KindProductDependencyNotFound        = "ProductDependencyNotFound"
	KindProductDependencyIncorrectPkg    = "ProductDependencyIncorrectPackage"
	KindProductDependencyMissingPackage  = "ProductDependencyMissingPackage"
	KindIncorrectPackageDependencyName   = "IncorrectPackageDependencyName"
	KindUnusedDependency                 = "UnusedDependency"
	KindUnsafeFlagsPropagated            = "UnsafeFlagsPropagated"
)

// MissingManifestSource is returned by Load (aborting) when an identity is
// reachable from a root's declared dependencies but no ManifestSource was
// supplied for it in roots or externals. Unlike the diagnostic kinds above,
// this reflects a caller contract violation: the resolver's Result should
// have produced an external source for every identity it decided.
type MissingManifestSource struct {
	Identity string
	From     string // identity of the dependent that referenced it
}

func (e *MissingManifestSource) Error() string {
	return fmt.Sprintf("no manifest source supplied for %q, referenced by %q", e.Identity, e.From)
}
