package container

import (
	"context"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
)

// RepositoryBackedContainer exposes a versioned package backed by a
// Repository. Dependencies are cached keyed by (identifier, productFilter)
// under a lock via the shared DependencyCache.
type RepositoryBackedContainer struct {
	id         ident.Identity
	repository repo.Repository
	loader     *manifest.Loader
	cache      *DependencyCache
	analyzer   string // recorded for diagnostics; name and version of the logic that produced it

	versionsMu  sync.Once
	versions    []BoundVersion
	versionsErr error
}

// NewRepositoryBackedContainer constructs a Container over a Repository
// handle, sharing cache with every other container in the same resolve.
func NewRepositoryBackedContainer(id ident.Identity, r repo.Repository, loader *manifest.Loader, cache *DependencyCache) *RepositoryBackedContainer {
	return &RepositoryBackedContainer{id: id, repository: r, loader: loader, cache: cache}
}

func (c *RepositoryBackedContainer) Identity() ident.Identity { return c.id }

// Versions is a lazy, filtered version listing: tags are parsed as semver
// once per container instance, sorted descending, and filtered by
// tools-version compatibility on first use.
func (c *RepositoryBackedContainer) Versions(ctx context.Context, filter func(manifest.ToolsVersion) bool) ([]BoundVersion, error) {
	c.versionsMu.Do(func() {
		c.versions, c.versionsErr = c.loadVersions(ctx)
	})
	if c.versionsErr != nil {
		return nil, c.versionsErr
	}

	if filter == nil {
		return c.versions, nil
	}
	var out []BoundVersion
	for _, v := range c.versions {
		tv, err := c.ToolsVersion(ctx, v)
		if err != nil {
			return nil, err
		}
		if filter(tv) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *RepositoryBackedContainer) loadVersions(ctx context.Context) ([]BoundVersion, error) {
	tags, err := c.repository.Tags(ctx)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]BoundVersion)
	var ordered []*semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue // not every tag is a version; non-semver tags are skipped
		}
		canon := v.String()
		if existing, ok := byVersion[canon]; ok {
			// When two tags map to the same semantic version, prefer the
			// non-"v"-prefixed one: a bare numeric tag wins over one with
			// a leading "v".
			if hasVPrefix(tag) && !hasVPrefix(string(existing.Revision)) {
				continue
			}
		} else {
			ordered = append(ordered, v)
		}

		rev, err := c.repository.ResolveRevision(ctx, tag)
		if err != nil {
			continue
		}
		byVersion[canon] = BoundVersion{Version: v, Revision: rev}
	}

	sortVersionsDescending(ordered)

	out := make([]BoundVersion, 0, len(ordered))
	for _, v := range ordered {
		out = append(out, byVersion[v.String()])
	}
	return out, nil
}

// ResolveBranch implements DirectResolver: BranchRequirement names a branch
// directly, which loadVersions never enumerates (it only walks tags), so the
// resolver binds it here instead of through Versions.
func (c *RepositoryBackedContainer) ResolveBranch(ctx context.Context, name string, preferRevision string) (BoundVersion, error) {
	branches, err := c.repository.Branches(ctx)
	if err != nil {
		return BoundVersion{}, err
	}
	found := false
	for _, b := range branches {
		if b == name {
			found = true
			break
		}
	}
	if !found {
		return BoundVersion{}, errors.Errorf("%s: no branch %q", c.id, name)
	}

	if preferRevision != "" {
		if exists, err := c.repository.Exists(ctx, repo.Revision(preferRevision)); err == nil && exists {
			return BoundVersion{Branch: name, Revision: repo.Revision(preferRevision)}, nil
		}
	}

	rev, err := c.repository.ResolveRevision(ctx, name)
	if err != nil {
		return BoundVersion{}, err
	}
	return BoundVersion{Branch: name, Revision: rev}, nil
}

// ResolveRevision implements DirectResolver: RevisionRequirement names a raw
// commit identifier directly, which loadVersions never produces a candidate
// for since it isn't necessarily a tag.
func (c *RepositoryBackedContainer) ResolveRevision(ctx context.Context, revision string) (BoundVersion, error) {
	rev, err := c.repository.ResolveRevision(ctx, revision)
	if err != nil {
		return BoundVersion{}, err
	}
	exists, err := c.repository.Exists(ctx, rev)
	if err != nil {
		return BoundVersion{}, err
	}
	if !exists {
		return BoundVersion{}, errors.Errorf("%s: revision %q not found", c.id, revision)
	}
	return BoundVersion{Revision: rev}, nil
}

func hasVPrefix(s string) bool { return len(s) > 0 && (s[0] == 'v' || s[0] == 'V') }

func sortVersionsDescending(vs []*semver.Version) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j].GreaterThan(vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}

func (c *RepositoryBackedContainer) ToolsVersion(ctx context.Context, v BoundVersion) (manifest.ToolsVersion, error) {
	fs, err := c.repository.OpenFileView(ctx, v.Revision)
	if err != nil {
		return manifest.ToolsVersion{}, err
	}
	m, err := c.loader.Load("", "", v.String(), manifest.KindRemotePackage, fs)
	if err != nil {
		return manifest.ToolsVersion{}, err
	}
	return m.ToolsVersion, nil
}

// Dependencies goes through a write-once cache: repeated calls for the
// same (identifier, productFilter) key return the installed value even if
// two resolver goroutines race to compute it.
func (c *RepositoryBackedContainer) Dependencies(ctx context.Context, v BoundVersion, pf manifest.ProductFilter) ([]manifest.Dependency, error) {
	return c.cache.GetOrCompute(c.id, string(v.Revision), pf, func() ([]manifest.Dependency, error) {
		fs, err := c.repository.OpenFileView(ctx, v.Revision)
		if err != nil {
			return nil, err
		}
		m, err := c.loader.Load("", "", v.String(), manifest.KindRemotePackage, fs)
		if err != nil {
			return nil, err
		}
		var out []manifest.Dependency
		for _, d := range m.Dependencies {
			if pf.IsEverything() || overlaps(pf, d.ProductFilter) {
				out = append(out, d)
			}
		}
		return out, nil
	})
}

func (c *RepositoryBackedContainer) IsToolsVersionCompatible(ctx context.Context) (bool, error) {
	vs, err := c.Versions(ctx, func(tv manifest.ToolsVersion) bool {
		return tv.Compare(manifest.CurrentToolsVersion) <= 0
	})
	if err != nil {
		return false, errors.Wrapf(err, "checking tools-version compatibility for %s", c.id)
	}
	return len(vs) > 0, nil
}
