// Package graph implements the Package Graph Loader: it takes the
// Dependency Resolver's output plus every resolved package's manifest and
// filesystem view, and builds a fully wired graph of packages, targets, and
// products ready for the build plan stage.
//
// Nodes are arena-allocated, stable-integer-ID values rather than pointer
// graphs. A parent owns its children (Package owns Targets and Products by
// value-holding slices); a child's reference back to its parent (Target and
// Product both carry a PackageID) and a product's reference to the targets
// that implement it are weak, non-owning edges expressed as plain IDs. Go's
// tracing collector does not need this to avoid leaks, but the shape is
// kept because it mirrors the ownership the rest of this package's
// diagnostics reason about (e.g. "this product belongs to that package").
package graph

import (
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// PackageID is a stable, graph-scoped identifier for a ResolvedPackage.
type PackageID int

// TargetID is a stable, graph-scoped identifier for a ResolvedTarget.
type TargetID int

// ProductID is a stable, graph-scoped identifier for a ResolvedProduct.
type ProductID int

// TargetEdgeKind discriminates a target dependency's destination.
type TargetEdgeKind int

const (
	// EdgeToTarget is a dependency on another target in the same package.
	EdgeToTarget TargetEdgeKind = iota
	// EdgeToProduct is a dependency on a product exported by a package
	// dependency.
	EdgeToProduct
)

// TargetEdge is one resolved dependency edge out of a ResolvedTarget.
type TargetEdge struct {
	Kind       TargetEdgeKind
	Target     TargetID  // meaningful when Kind == EdgeToTarget
	Product    ProductID // meaningful when Kind == EdgeToProduct
	Conditions []string
	// Implicit marks an edge that was not declared in the manifest but
	// synthesized by the loader (the implicit system-library wiring).
	Implicit bool
}

// ResolvedTarget is one compilation unit after wiring.
type ResolvedTarget struct {
	ID      TargetID
	Package PackageID // weak back-reference to the owning package

	Name         string
	Sources      []string
	Path         string
	IsTest       bool
	Unsafe       bool
	BundlePath   string
	Dependencies []TargetEdge
}

// ResolvedProduct is one exported product after wiring.
type ResolvedProduct struct {
	ID      ProductID
	Package PackageID // weak back-reference to the owning package

	Name    string
	Kind    manifest.ProductKind
	Targets []TargetID
	// Unsafe is set when any target in this product's recursive target
	// closure declares unsafe build flags and the owning package is not on
	// the unsafe allow-list.
	Unsafe bool
}

// ResolvedPackage is one package after manifest loading and target/product
// construction, before or after dependency wiring depending on the loader
// stage that produced it.
type ResolvedPackage struct {
	ID       PackageID
	Identity ident.Identity
	Manifest *manifest.Manifest
	FS       manifest.FileSystem

	// IsRoot marks a package the caller asked to resolve/load directly, as
	// opposed to one reached only as someone else's dependency.
	IsRoot        bool
	ProductFilter manifest.ProductFilter

	Targets  []*ResolvedTarget
	Products []*ResolvedProduct

	// Dependencies lists the other packages this package's manifest
	// declares a dependency on, resolved to their graph IDs.
	Dependencies []PackageID

	// NoModules is set for a non-root package that declares zero targets:
	// it contributes nothing buildable, but is kept in the graph so
	// diagnostics can still refer to it by identity.
	NoModules bool

	names *packageNames
}

// Graph is the fully loaded, wired package graph.
type Graph struct {
	Packages   []*ResolvedPackage
	byIdentity map[ident.Identity]*ResolvedPackage
	byPackage  map[PackageID]*ResolvedPackage
	byTarget   map[TargetID]*ResolvedTarget
	byProduct  map[ProductID]*ResolvedProduct
}

// PackageByIdentity returns the package with the given identity, if any.
func (g *Graph) PackageByIdentity(id ident.Identity) (*ResolvedPackage, bool) {
	p, ok := g.byIdentity[id]
	return p, ok
}

// Package returns the package with the given ID, if any.
func (g *Graph) Package(id PackageID) (*ResolvedPackage, bool) {
	p, ok := g.byPackage[id]
	return p, ok
}

// Target returns the target with the given ID, if any.
func (g *Graph) Target(id TargetID) (*ResolvedTarget, bool) {
	t, ok := g.byTarget[id]
	return t, ok
}

// Product returns the product with the given ID, if any.
func (g *Graph) Product(id ProductID) (*ResolvedProduct, bool) {
	p, ok := g.byProduct[id]
	return p, ok
}

// TargetByName looks up a target declared directly on p by name.
func (p *ResolvedPackage) TargetByName(name string) (*ResolvedTarget, bool) {
	if p.names == nil {
		return nil, false
	}
	return p.names.target(name)
}

// ProductByName looks up a product exported directly by p by name.
func (p *ResolvedPackage) ProductByName(name string) (*ResolvedProduct, bool) {
	if p.names == nil {
		return nil, false
	}
	return p.names.product(name)
}
