package graph

import (
	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// minExplicitPackageNameVersion is the tools-version floor at which a
// product dependency must either name its package explicitly or have its
// product, package, and dependency names all coincide.
var minExplicitPackageNameVersion = manifest.ToolsVersion{Major: 5, Minor: 2, Patch: 0}

type nodeState struct {
	identity ident.Identity
	isRoot   bool
	filter   manifest.ProductFilter
	expanded bool
	source   ManifestSource
	hasSrc   bool
}

// Load builds the package graph for roots, pulling in whatever externals
// are needed to satisfy their transitive dependencies. roots are the
// manifests the caller asked to resolve/load directly; externals are every
// other manifest the resolver decided on. diags receives every non-aborting
// failure (cycles, duplicate products/targets, unused dependencies, unsafe
// propagation); Load still returns a graph alongside them. Load returns a
// non-nil error only for a caller contract violation: a reachable identity
// with no corresponding ManifestSource.
func Load(roots, externals []ManifestSource, diags *diag.Sink) (*Graph, error) {
	sourceByIdentity := make(map[ident.Identity]ManifestSource, len(roots)+len(externals))
	for _, s := range externals {
		sourceByIdentity[s.Identity] = s
	}
	for _, s := range roots {
		sourceByIdentity[s.Identity] = s
	}

	states := make(map[ident.Identity]*nodeState)
	adj := make(map[ident.Identity][]ident.Identity)
	var order []ident.Identity

	type demand struct {
		identity ident.Identity
		from     ident.Identity
		filter   manifest.ProductFilter
	}
	var queue []demand

	for _, s := range roots {
		queue = append(queue, demand{identity: s.Identity, filter: manifest.Everything()})
	}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		st, ok := states[d.identity]
		if !ok {
			st = &nodeState{identity: d.identity, filter: manifest.Specific()}
			states[d.identity] = st
			order = append(order, d.identity)
		}
		if d.from == "" {
			st.isRoot = true
		}
		st.filter = st.filter.Union(d.filter)

		if st.expanded {
			continue
		}
		st.expanded = true

		src, ok := sourceByIdentity[d.identity]
		if !ok {
			return nil, &MissingManifestSource{Identity: string(d.identity), From: string(d.from)}
		}
		st.source = src
		st.hasSrc = true

		if src.Manifest == nil {
			continue
		}
		for _, dep := range src.Manifest.Dependencies {
			adj[d.identity] = append(adj[d.identity], dep.Identity)
			queue = append(queue, demand{identity: dep.Identity, from: d.identity, filter: dep.ProductFilter})
		}
	}

	live := make(map[ident.Identity]bool, len(order))
	for _, id := range order {
		live[id] = true
	}

	breakCycles(adj, order, live, func(prefix, cycle []ident.Identity) {
		loc := diag.Location{}
		if len(cycle) > 0 {
			loc.Package = string(cycle[0])
		}
		diags.Errorf(loc, KindCycleDetected, "dependency cycle: %s", cyclePathString(prefix, cycle))
	})

	buildOrder := topoOrder(adj, order, live)

	g := &Graph{
		byIdentity: make(map[ident.Identity]*ResolvedPackage, len(buildOrder)),
		byPackage:  make(map[PackageID]*ResolvedPackage, len(buildOrder)),
		byTarget:   make(map[TargetID]*ResolvedTarget),
		byProduct:  make(map[ProductID]*ResolvedProduct),
	}

	var nextPackageID PackageID
	var nextTargetID TargetID
	var nextProductID ProductID

	// rawTargetDeps records each built target's declared dependencies so
	// the wiring pass below can walk them after every package exists.
	rawTargetDeps := make(map[TargetID][]manifest.TargetDependency)

	for _, id := range buildOrder {
		st := states[id]
		if !st.hasSrc {
			continue
		}
		m := st.source.Manifest

		pkg := &ResolvedPackage{
			ID:            nextPackageID,
			Identity:      id,
			Manifest:      m,
			FS:            st.source.FS,
			IsRoot:        st.isRoot,
			ProductFilter: st.filter,
			names:         newPackageNames(),
		}
		nextPackageID++

		if m == nil {
			g.Packages = append(g.Packages, pkg)
			g.byIdentity[id] = pkg
			g.byPackage[pkg.ID] = pkg
			continue
		}

		if !pkg.IsRoot && len(m.Targets) == 0 {
			pkg.NoModules = true
			diags.Warnf(diag.Location{Package: string(id)}, KindNoModules, "package %q declares no targets", id)
		}

		for _, t := range m.Targets {
			if _, dup := pkg.names.target(t.Name); dup {
				diags.Errorf(diag.Location{Package: string(id)}, KindDuplicateTarget, "package %q declares target %q more than once", id, t.Name)
				continue
			}
			rt := &ResolvedTarget{
				ID:         nextTargetID,
				Package:    pkg.ID,
				Name:       t.Name,
				Sources:    t.Sources,
				Path:       t.Path,
				IsTest:     t.IsTest,
				Unsafe:     len(t.UnsafeFlags) > 0,
				BundlePath: t.BundlePath,
			}
			nextTargetID++
			pkg.Targets = append(pkg.Targets, rt)
			pkg.names.insertTarget(t.Name, rt)
			g.byTarget[rt.ID] = rt
			rawTargetDeps[rt.ID] = t.Dependencies
		}

		for _, p := range m.Products {
			if _, dup := pkg.names.product(p.Name); dup {
				diags.Errorf(diag.Location{Package: string(id)}, KindDuplicateTarget, "package %q declares product %q more than once", id, p.Name)
				continue
			}
			rp := &ResolvedProduct{
				ID:      nextProductID,
				Package: pkg.ID,
				Name:    p.Name,
				Kind:    p.Kind,
			}
			nextProductID++
			for _, tn := range p.Targets {
				if rt, ok := pkg.names.target(tn); ok {
					rp.Targets = append(rp.Targets, rt.ID)
				}
			}
			pkg.Products = append(pkg.Products, rp)
			pkg.names.insertProduct(p.Name, rp)
			g.byProduct[rp.ID] = rp
		}

		for _, dep := range m.Dependencies {
			if !live[dep.Identity] {
				continue // dropped while breaking a cycle; partial graph
			}
			if depPkg, ok := g.byIdentity[dep.Identity]; ok {
				pkg.Dependencies = append(pkg.Dependencies, depPkg.ID)
			}
		}

		g.Packages = append(g.Packages, pkg)
		g.byIdentity[id] = pkg
		g.byPackage[pkg.ID] = pkg
	}

	detectDuplicateProducts(g, diags)
	wireTargetDependencies(g, rawTargetDeps, diags)
	wireImplicitSystemModules(g)
	detectUnusedDependencies(g, diags)
	propagateUnsafe(g, diags)

	return g, nil
}

// detectDuplicateProducts implements step 8's product half: a product name
// exported by more than one package is ambiguous. Both (all) offending
// products are stripped from their owning packages and from every lookup
// index, so the wiring pass below treats them as missing rather than
// guessing which one a caller meant.
func detectDuplicateProducts(g *Graph, diags *diag.Sink) {
	byName := make(map[string][]*ResolvedProduct)
	for _, pkg := range g.Packages {
		for _, p := range pkg.Products {
			byName[p.Name] = append(byName[p.Name], p)
		}
	}

	for name, prods := range byName {
		if len(prods) < 2 {
			continue
		}
		var owners []string
		for _, p := range prods {
			if owner, ok := g.byPackage[p.Package]; ok {
				owners = append(owners, string(owner.Identity))
			}
		}
		diags.Errorf(diag.Location{}, KindDuplicateProduct, "product %q exported by multiple packages: %v", name, owners)

		for _, p := range prods {
			owner := g.byPackage[p.Package]
			owner.Products = removeProduct(owner.Products, p.ID)
			delete(g.byProduct, p.ID)
		}
	}
}

func removeProduct(products []*ResolvedProduct, id ProductID) []*ResolvedProduct {
	out := products[:0]
	for _, p := range products {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

const (
	kindMissingPackageSuggestionFmt = "dependency on product %q is ambiguous without naming its package explicitly; specify package %q"
)

// wireTargetDependencies implements steps 7 and 10: resolve every declared
// TargetDependency to a concrete TargetEdge, using rawDeps (the manifest's
// original dependency list per target, captured during construction).
func wireTargetDependencies(g *Graph, rawDeps map[TargetID][]manifest.TargetDependency, diags *diag.Sink) {
	for _, pkg := range g.Packages {
		if pkg.Manifest == nil {
			continue
		}

		depPackagesByName := make(map[string]*ResolvedPackage, len(pkg.Dependencies))
		depProductsByName := make(map[string][]*ResolvedProduct)
		for _, depID := range pkg.Dependencies {
			depPkg, ok := g.byPackage[depID]
			if !ok || depPkg.Manifest == nil {
				continue
			}
			depPackagesByName[depPkg.Manifest.Name] = depPkg
			for _, p := range depPkg.Products {
				depProductsByName[p.Name] = append(depProductsByName[p.Name], p)
			}
		}

		for _, t := range pkg.Targets {
			loc := diag.Location{Package: string(pkg.Identity)}

			for _, d := range rawDeps[t.ID] {
				if !d.IsProduct() {
					if target, ok := pkg.names.target(d.TargetName); ok {
						t.Dependencies = append(t.Dependencies, TargetEdge{Kind: EdgeToTarget, Target: target.ID, Conditions: d.Conditions})
					} else {
						diags.Errorf(loc, KindProductDependencyNotFound, "target %q in package %q depends on unknown target %q", t.Name, pkg.Identity, d.TargetName)
					}
					continue
				}

				if d.PackageName != "" {
					depPkg, ok := depPackagesByName[d.PackageName]
					if !ok {
						diags.Errorf(loc, KindIncorrectPackageDependencyName, "package %q is not a dependency of %q", d.PackageName, pkg.Identity)
						continue
					}
					prod, ok := depPkg.ProductByName(d.ProductName)
					if !ok {
						if _, existsElsewhere := depProductsByName[d.ProductName]; existsElsewhere {
							diags.Errorf(loc, KindProductDependencyIncorrectPkg, "product %q is not exported by package %q; it belongs to a different dependency", d.ProductName, d.PackageName)
						} else {
							diags.Errorf(loc, KindProductDependencyNotFound, "product %q not found in package %q", d.ProductName, d.PackageName)
						}
						continue
					}
					t.Dependencies = append(t.Dependencies, TargetEdge{Kind: EdgeToProduct, Product: prod.ID, Conditions: d.Conditions})
					continue
				}

				candidates := depProductsByName[d.ProductName]
				switch len(candidates) {
				case 0:
					diags.Errorf(loc, KindProductDependencyNotFound, "product %q not found among dependencies of package %q", d.ProductName, pkg.Identity)
				case 1:
					cand := candidates[0]
					depPkg := g.byPackage[cand.Package]
					if requiresExplicitPackageName(pkg.Manifest, d, depPkg) {
						diags.Errorf(loc, KindProductDependencyMissingPackage, kindMissingPackageSuggestionFmt, d.ProductName, depPkg.Manifest.Name)
						continue
					}
					t.Dependencies = append(t.Dependencies, TargetEdge{Kind: EdgeToProduct, Product: cand.ID, Conditions: d.Conditions})
				default:
					diags.Errorf(loc, KindProductDependencyMissingPackage, "product %q is ambiguous among %d dependencies; specify package", d.ProductName, len(candidates))
				}
			}
		}
	}
}

// requiresExplicitPackageName implements step 10: at tools-version >= 5.2,
// a product dependency with no explicit package name is only accepted when
// the product name, the owning package's declared name, and its identity
// all coincide.
func requiresExplicitPackageName(m *manifest.Manifest, d manifest.TargetDependency, depPkg *ResolvedPackage) bool {
	if m.ToolsVersion.Compare(minExplicitPackageNameVersion) < 0 {
		return false
	}
	if depPkg == nil || depPkg.Manifest == nil {
		return false
	}
	coincide := d.ProductName == depPkg.Manifest.Name && depPkg.Manifest.Name == string(depPkg.Identity)
	return !coincide
}

// wireImplicitSystemModules implements step 9: every target in a package
// gets an implicit edge to every system-module product exported by one of
// that package's direct dependencies, without the manifest declaring it.
func wireImplicitSystemModules(g *Graph) {
	for _, pkg := range g.Packages {
		var systemModules []ProductID
		for _, depID := range pkg.Dependencies {
			depPkg, ok := g.byPackage[depID]
			if !ok {
				continue
			}
			for _, p := range depPkg.Products {
				if p.Kind == manifest.ProductSystemModule {
					systemModules = append(systemModules, p.ID)
				}
			}
		}
		if len(systemModules) == 0 {
			continue
		}

		for _, t := range pkg.Targets {
			existing := make(map[ProductID]bool, len(t.Dependencies))
			for _, e := range t.Dependencies {
				if e.Kind == EdgeToProduct {
					existing[e.Product] = true
				}
			}
			for _, pid := range systemModules {
				if existing[pid] {
					continue
				}
				t.Dependencies = append(t.Dependencies, TargetEdge{Kind: EdgeToProduct, Product: pid, Implicit: true})
			}
		}
	}
}

// detectUnusedDependencies implements step 11: a package dependency is
// "used" if a root target depends on one of its products, it exports at
// least one executable product, or it contributes exactly one implicit
// system module.
func detectUnusedDependencies(g *Graph, diags *diag.Sink) {
	for _, pkg := range g.Packages {
		if !pkg.IsRoot {
			continue
		}
		usedProductPackages := make(map[PackageID]bool)
		for _, t := range pkg.Targets {
			for _, e := range t.Dependencies {
				if e.Kind != EdgeToProduct || e.Implicit {
					continue
				}
				if prod, ok := g.byProduct[e.Product]; ok {
					usedProductPackages[prod.Package] = true
				}
			}
		}

		for _, depID := range pkg.Dependencies {
			depPkg, ok := g.byPackage[depID]
			if !ok {
				continue
			}

			if usedProductPackages[depID] {
				continue
			}
			if exportsExecutable(depPkg) {
				continue
			}
			if countSystemModules(depPkg) == 1 {
				continue
			}

			diags.Warnf(diag.Location{Package: string(pkg.Identity)}, KindUnusedDependency,
				"dependency %q is declared but not used by package %q", depPkg.Identity, pkg.Identity)
		}
	}
}

func exportsExecutable(pkg *ResolvedPackage) bool {
	for _, p := range pkg.Products {
		if p.Kind == manifest.ProductExecutable {
			return true
		}
	}
	return false
}

func countSystemModules(pkg *ResolvedPackage) int {
	n := 0
	for _, p := range pkg.Products {
		if p.Kind == manifest.ProductSystemModule {
			n++
		}
	}
	return n
}

// propagateUnsafe implements step 12: walk each product's recursive target
// closure (following same-package target-to-target edges only); any
// target in that closure with unsafe flags marks the product unsafe unless
// the owning package is on the unsafe allow-list, with one diagnostic per
// (product, target) pair.
func propagateUnsafe(g *Graph, diags *diag.Sink) {
	for _, pkg := range g.Packages {
		allowed := pkg.Manifest != nil && pkg.Manifest.UnsafeAllowList

		for _, p := range pkg.Products {
			visited := make(map[TargetID]bool)
			queue := append([]TargetID(nil), p.Targets...)

			for len(queue) > 0 {
				tid := queue[0]
				queue = queue[1:]
				if visited[tid] {
					continue
				}
				visited[tid] = true

				t, ok := g.byTarget[tid]
				if !ok {
					continue
				}
				if t.Unsafe && !allowed {
					p.Unsafe = true
					diags.Errorf(diag.Location{Package: string(pkg.Identity)}, KindUnsafeFlagsPropagated,
						"product %q is unsafe: target %q declares unsafe flags", p.Name, t.Name)
				}
				for _, e := range t.Dependencies {
					if e.Kind == EdgeToTarget {
						queue = append(queue, e.Target)
					}
				}
			}
		}
	}
}
