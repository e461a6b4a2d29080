// Package resolve implements the Dependency Resolver: a conflict-driven,
// PubGrub-style search over Package Containers that
// produces a consistent BoundVersion assignment for every reachable
// identity, honoring pins as soft preferences and mirrors as a rewrite
// applied before every container lookup.
package resolve

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/container"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/pins"
)

// DecisionKind is the resolver's verdict for one identity.
type DecisionKind int

const (
	DecisionVersion DecisionKind = iota
	DecisionRevision
	DecisionUnversioned
	DecisionExcluded
)

// Decision is the resolver's binding for one identity: a concrete version,
// revision, unversioned (root/local packages), or excluded.
type Decision struct {
	Kind          DecisionKind
	Bound         container.BoundVersion
	ProductFilter manifest.ProductFilter
}

// RootConstraint is one of the caller-supplied starting constraints that
// seeds the decision loop.
type RootConstraint struct {
	Ref           ident.Reference
	Requirement   manifest.Requirement
	ProductFilter manifest.ProductFilter
}

// ContainerProvider resolves a Reference to the Container the solver should
// query for versions/dependencies. It is the seam the Workspace plugs the
// Repository Manager and mirror table in through.
type ContainerProvider interface {
	GetContainer(ctx context.Context, ref ident.Reference) (container.Container, error)
}

// Result is the resolver's output: a Decision for every reachable identity,
// plus the Reference each identity was last seen at (after mirror rewrite),
// so a caller materializing checkouts doesn't need to re-derive them.
type Result struct {
	Decisions  map[ident.Identity]Decision
	References map[ident.Identity]ident.Reference
}

// UnresolvableConflict explains why no consistent assignment exists.
type UnresolvableConflict struct {
	Incompatibilities []Incompatibility
}

func (e *UnresolvableConflict) Error() string {
	msg := "no versions of "
	if len(e.Incompatibilities) == 0 {
		return "unresolvable dependency conflict"
	}
	msg += string(e.Incompatibilities[0].Identity) + " satisfy all requirements:"
	for _, inc := range e.Incompatibilities {
		msg += "\n  " + inc.String()
	}
	return msg
}

// Incompatibility records one identity for which the accumulated
// requirements from its dependents ruled out every available version: the
// minimal conflicting set an UnresolvableConflict needs to explain itself.
type Incompatibility struct {
	Identity   ident.Identity
	Dependents []DependentRequirement
}

// DependentRequirement is one edge contributing to an Incompatibility.
type DependentRequirement struct {
	From        ident.Identity
	Requirement manifest.Requirement
}

func (i Incompatibility) String() string {
	s := string(i.Identity) + ": no compatible version; demanded by"
	for _, d := range i.Dependents {
		s += " " + string(d.From) + "(" + d.Requirement.String() + ")"
	}
	return s
}

// Resolver runs the decision loop over a set of root constraints to a
// fixpoint, one identity's demand at a time.
type Resolver struct {
	containers ContainerProvider
	mirrors    interface{ Rewrite(string) string }
	pinsStore  *pins.Store
}

// New constructs a Resolver. mirrors may be nil.
func New(containers ContainerProvider, mirrors interface{ Rewrite(string) string }, pinsStore *pins.Store) *Resolver {
	return &Resolver{containers: containers, mirrors: mirrors, pinsStore: pinsStore}
}

// pendingDemand is one not-yet-fully-processed requirement on an identity.
type pendingDemand struct {
	ref           ident.Reference
	requirement   manifest.Requirement
	productFilter manifest.ProductFilter
}

// state tracks the resolver's in-progress assignment for one identity.
type state struct {
	ref           ident.Reference
	requirements  []manifest.Requirement // all requirements demanded so far, for conflict reporting
	dependents    []DependentRequirement
	productFilter manifest.ProductFilter
	decision      *Decision
	isRoot        bool
}

// Solve runs the decision loop to completion, returning a Result or an
// *UnresolvableConflict.
func (r *Resolver) Solve(ctx context.Context, roots []RootConstraint) (*Result, error) {
	states := make(map[ident.Identity]*state)
	var queue []pendingDemand

	for _, rc := range roots {
		ref := r.rewriteRef(rc.Ref)
		st, ok := states[ref.Identity]
		if !ok {
			st = &state{ref: ref, isRoot: true, productFilter: manifest.Specific()}
			states[ref.Identity] = st
		}
		st.productFilter = st.productFilter.Union(rc.ProductFilter)
		st.requirements = append(st.requirements, rc.Requirement)
		st.dependents = append(st.dependents, DependentRequirement{From: "(root)", Requirement: rc.Requirement})
		queue = append(queue, pendingDemand{ref: ref, requirement: rc.Requirement, productFilter: rc.ProductFilter})
	}

	var conflicts []Incompatibility

	for len(queue) > 0 {
		demand := queue[0]
		queue = queue[1:]

		st := states[demand.ref.Identity]

		grew := !st.productFilter.Equal(st.productFilter.Union(demand.productFilter))
		st.productFilter = st.productFilter.Union(demand.productFilter)

		if st.decision != nil && !grew {
			// Already decided and this demand adds nothing new; only
			// re-resolve when the accumulated product filter actually grows.
			continue
		}

		c, err := r.containers.GetContainer(ctx, demand.ref)
		if err != nil {
			return nil, errors.Wrapf(err, "loading container for %s", demand.ref.Identity)
		}

		dec, deps, err := r.decide(ctx, st, c)
		if err != nil {
			if inc, ok := err.(*noCompatibleVersion); ok {
				conflicts = append(conflicts, inc.Incompatibility)
				continue
			}
			return nil, err
		}
		st.decision = &dec

		for _, dep := range deps {
			depRef := r.rewriteRef(mustRef(dep))
			depSt, ok := states[depRef.Identity]
			if !ok {
				depSt = &state{ref: depRef, productFilter: manifest.Specific()}
				states[depRef.Identity] = depSt
			}
			depSt.requirements = append(depSt.requirements, dep.Requirement)
			depSt.dependents = append(depSt.dependents, DependentRequirement{From: demand.ref.Identity, Requirement: dep.Requirement})
			queue = append(queue, pendingDemand{ref: depRef, requirement: dep.Requirement, productFilter: dep.ProductFilter})
		}
	}

	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Identity.Less(conflicts[j].Identity) })
		return nil, &UnresolvableConflict{Incompatibilities: conflicts}
	}

	result := &Result{
		Decisions:  make(map[ident.Identity]Decision, len(states)),
		References: make(map[ident.Identity]ident.Reference, len(states)),
	}
	for id, st := range states {
		if st.decision != nil {
			result.Decisions[id] = *st.decision
		}
		result.References[id] = st.ref
	}
	return result, nil
}

func mustRef(dep manifest.Dependency) ident.Reference {
	kind := ident.KindRemote
	if _, ok := dep.Requirement.(manifest.LocalPackageRequirement); ok {
		kind = ident.KindLocal
	}
	return ident.Reference{Identity: dep.Identity, Kind: kind, Location: dep.Location}
}

func (r *Resolver) rewriteRef(ref ident.Reference) ident.Reference {
	if r.mirrors == nil {
		return ref
	}
	rewritten := r.mirrors.Rewrite(ref.Location)
	if rewritten == ref.Location {
		return ref
	}
	id, err := ident.DeriveIdentity(rewritten)
	if err != nil {
		return ref
	}
	return ident.Reference{Identity: id, Kind: ref.Kind, Location: rewritten}
}

type noCompatibleVersion struct {
	Incompatibility
}

func (e *noCompatibleVersion) Error() string { return e.Incompatibility.String() }

// decide picks a version/revision for st and returns the dependencies
// declared at that bind: root and local packages are unversioned;
// otherwise query the container for compatible versions in descending
// order, preferring the pin when it's still in the feasible set.
func (r *Resolver) decide(ctx context.Context, st *state, c container.Container) (Decision, []manifest.Dependency, error) {
	if st.isRoot || isLocalOnly(st.requirements) {
		dec := Decision{Kind: DecisionUnversioned, ProductFilter: st.productFilter}
		deps, err := c.Dependencies(ctx, container.BoundVersion{}, st.productFilter)
		if err != nil {
			return Decision{}, nil, err
		}
		return dec, deps, nil
	}

	if req, ok := directRequirement(st.requirements); ok {
		bound, err := r.resolveDirect(ctx, c, st, req)
		if err != nil || !satisfiesAll(bound, st.requirements) {
			return Decision{}, nil, &noCompatibleVersion{Incompatibility{Identity: st.ref.Identity, Dependents: st.dependents}}
		}

		deps, err := c.Dependencies(ctx, bound, st.productFilter)
		if err != nil {
			return Decision{}, nil, err
		}
		return Decision{Kind: DecisionRevision, Bound: bound, ProductFilter: st.productFilter}, deps, nil
	}

	candidates, err := c.Versions(ctx, func(tv manifest.ToolsVersion) bool {
		return tv.Compare(manifest.CurrentToolsVersion) <= 0
	})
	if err != nil {
		return Decision{}, nil, err
	}

	feasible := filterFeasible(candidates, st.requirements)
	if len(feasible) == 0 {
		return Decision{}, nil, &noCompatibleVersion{Incompatibility{Identity: st.ref.Identity, Dependents: st.dependents}}
	}

	pin, _ := r.pinFor(st.ref.Identity)
	chosen := pickWithPinPreference(feasible, pin)

	deps, err := c.Dependencies(ctx, chosen, st.productFilter)
	if err != nil {
		return Decision{}, nil, err
	}

	kind := DecisionVersion
	if chosen.Version == nil {
		kind = DecisionRevision
	}
	return Decision{Kind: kind, Bound: chosen, ProductFilter: st.productFilter}, deps, nil
}

func (r *Resolver) pinFor(id ident.Identity) (pins.Pin, bool) {
	if r.pinsStore == nil {
		return pins.Pin{}, false
	}
	return r.pinsStore.Get(id)
}

// directRequirement returns the first BranchRequirement or RevisionRequirement
// among reqs, if any. Both name an exact bind a tag-derived Versions list can
// never produce, so decide() resolves them against the container directly
// instead of filtering candidates.
func directRequirement(reqs []manifest.Requirement) (manifest.Requirement, bool) {
	for _, req := range reqs {
		switch req.(type) {
		case manifest.BranchRequirement, manifest.RevisionRequirement:
			return req, true
		}
	}
	return nil, false
}

// resolveDirect binds req against c, which must implement
// container.DirectResolver; any non-repository-backed container reaching
// here (a branch/revision requirement can only target a remote dependency)
// is a caller bug, reported as an error rather than a panic. For a branch
// requirement, the identity's pin (if its recorded branch matches) is
// offered as the preferred revision, so an already-resolved branch doesn't
// silently move forward on every resolve.
func (r *Resolver) resolveDirect(ctx context.Context, c container.Container, st *state, req manifest.Requirement) (container.BoundVersion, error) {
	resolver, ok := c.(container.DirectResolver)
	if !ok {
		return container.BoundVersion{}, errors.Errorf("%s does not support branch/revision resolution", c.Identity())
	}
	switch req := req.(type) {
	case manifest.BranchRequirement:
		var preferRevision string
		if pin, ok := r.pinFor(st.ref.Identity); ok && pin.State.Branch == req.Name {
			preferRevision = pin.State.Revision
		}
		return resolver.ResolveBranch(ctx, req.Name, preferRevision)
	case manifest.RevisionRequirement:
		return resolver.ResolveRevision(ctx, req.Revision)
	default:
		return container.BoundVersion{}, errors.Errorf("%T is not a branch or revision requirement", req)
	}
}

func isLocalOnly(reqs []manifest.Requirement) bool {
	for _, req := range reqs {
		if _, ok := req.(manifest.LocalPackageRequirement); ok {
			return true
		}
	}
	return false
}

// filterFeasible keeps only candidates satisfying every accumulated
// requirement (range intersection, exact match, branch match).
func filterFeasible(candidates []container.BoundVersion, reqs []manifest.Requirement) []container.BoundVersion {
	var out []container.BoundVersion
	for _, cand := range candidates {
		if satisfiesAll(cand, reqs) {
			out = append(out, cand)
		}
	}
	return out
}

func satisfiesAll(cand container.BoundVersion, reqs []manifest.Requirement) bool {
	for _, req := range reqs {
		if !satisfies(cand, req) {
			return false
		}
	}
	return true
}

func satisfies(cand container.BoundVersion, req manifest.Requirement) bool {
	switch r := req.(type) {
	case manifest.RangeRequirement:
		return cand.Version != nil && r.Constraint().Admits(cand.Version) == nil
	case manifest.ExactRequirement:
		return cand.Version != nil && cand.Version.Equal(r.Version)
	case manifest.BranchRequirement:
		return cand.Branch == r.Name
	case manifest.RevisionRequirement:
		return string(cand.Revision) == r.Revision
	case manifest.LocalPackageRequirement:
		return true
	default:
		return false
	}
}

// pickWithPinPreference returns the pinned candidate whenever it is still
// feasible, whatever its version; otherwise the highest compatible version.
func pickWithPinPreference(feasible []container.BoundVersion, pin pins.Pin) container.BoundVersion {
	for _, cand := range feasible {
		if pin.State.Revision != "" && string(cand.Revision) == pin.State.Revision {
			return cand
		}
	}
	return feasible[0] // candidates are already sorted descending by Versions()
}
