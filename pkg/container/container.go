// Package container implements the Package Container abstraction: a
// tagged variant exposing available versions, tools-version compatibility,
// and dependency constraints at a given version/revision to the Dependency
// Resolver, without the resolver needing a subclass hierarchy.
package container

import (
	"context"

	"github.com/Masterminds/semver"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
)

// BoundVersion is one version/revision a Container can be queried at. It is
// a thin wrapper so the resolver can treat semver tags and raw revisions
// uniformly.
type BoundVersion struct {
	Version  *semver.Version // nil for a pure-revision bind
	Revision repo.Revision
	Branch   string // non-empty when this bind came from a branch tip
}

func (b BoundVersion) String() string {
	switch {
	case b.Version != nil:
		return b.Version.String()
	case b.Branch != "":
		return b.Branch + "@" + string(b.Revision)
	default:
		return string(b.Revision)
	}
}

// Container is the common capability set both variants expose.
type Container interface {
	Identity() ident.Identity

	// Versions returns every tools-version-compatible version, filtered by
	// filter, in descending order, lazily and on demand.
	Versions(ctx context.Context, filter func(manifest.ToolsVersion) bool) ([]BoundVersion, error)

	// ToolsVersion returns the declared tools-version at v.
	ToolsVersion(ctx context.Context, v BoundVersion) (manifest.ToolsVersion, error)

	// Dependencies returns the dependency constraints declared at v,
	// restricted to the given product filter.
	Dependencies(ctx context.Context, v BoundVersion, pf manifest.ProductFilter) ([]manifest.Dependency, error)

	// IsToolsVersionCompatible reports whether the container has at least
	// one version compatible with the current loader.
	IsToolsVersionCompatible(ctx context.Context) (bool, error)
}

// DirectResolver is implemented by containers that can bind a named branch
// tip or a raw revision identifier directly, for BranchRequirement and
// RevisionRequirement kinds: neither names a tag, so a tag-derived Versions
// list can never produce a matching candidate for them.
type DirectResolver interface {
	// ResolveBranch binds to the named branch. When preferRevision is
	// non-empty and still exists in the repository, it wins over the
	// branch's current tip: the tie-break rule for a floating requirement is
	// to prefer whatever revision is already present in the workspace over
	// silently moving forward on every resolve.
	ResolveBranch(ctx context.Context, name string, preferRevision string) (BoundVersion, error)
	// ResolveRevision binds to revision, which must already exist in the
	// repository (a raw SHA is not enough; it must be reachable).
	ResolveRevision(ctx context.Context, revision string) (BoundVersion, error)
}

// ReversedVersions returns Versions in ascending order, used by the
// resolver's tie-break rule (highest compatible version first still reads
// top-to-bottom, but callers that want oldest-first call this instead of
// reversing themselves every time).
func ReversedVersions(ctx context.Context, c Container, filter func(manifest.ToolsVersion) bool) ([]BoundVersion, error) {
	vs, err := c.Versions(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]BoundVersion, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out, nil
}
