// Package repo implements the Repository Provider and Repository Manager:
// the fetch/clone/checkout lifecycle, the bare-repo object cache, and
// immutable per-revision file views, all behind a provider abstraction so
// non-git sources can be added without touching callers.
package repo

import (
	"context"
	"time"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// Revision identifies a concrete, immutable commit. Tags and branch names
// resolve to a Revision before anything downstream trusts them.
type Revision string

// Provider abstracts SCM operations. The built-in implementation
// (GitProvider) wraps github.com/Masterminds/vcs; a provider for another
// SCM would implement the same interface.
type Provider interface {
	// Fetch mirror-clones ref's location into a bare repository at
	// destination. Precondition: destination does not exist.
	Fetch(ctx context.Context, ref ident.Reference, destination string) error

	// Open returns a Repository handle over an existing bare clone at path.
	Open(ctx context.Context, ref ident.Reference, path string) (Repository, error)

	// CloneCheckout produces a working tree at destination from the bare
	// repository at source. When editable, a full clone is made and its
	// remote rewritten to ref's canonical upstream location; otherwise a
	// shared-object-store clone is made (cheap, read-mostly).
	CloneCheckout(ctx context.Context, ref ident.Reference, source, destination string, editable bool) error

	// CheckoutExists reports whether path already holds a working tree.
	CheckoutExists(path string) (bool, error)

	// OpenCheckout returns a FileSystem view over an existing working tree
	// at path (mutable, unlike Repository.OpenFileView).
	OpenCheckout(path string) (manifest.FileSystem, error)

	// Copy duplicates the working tree at src to dst.
	Copy(src, dst string) error
}

// Repository is a handle over one bare repository.
type Repository interface {
	// Tags returns every tag in the repository. Result is memoized until
	// the next Fetch.
	Tags(ctx context.Context) ([]string, error)
	// Branches returns every branch in the repository.
	Branches(ctx context.Context) ([]string, error)
	// ResolveRevision resolves a tag, branch, or raw identifier to a
	// concrete Revision.
	ResolveRevision(ctx context.Context, identifier string) (Revision, error)
	// Fetch brings the bare repository's objects up to date and
	// invalidates the tags/branches cache.
	Fetch(ctx context.Context) error
	// Exists reports whether revision is present locally without fetching.
	Exists(ctx context.Context, revision Revision) (bool, error)
	// OpenFileView returns an immutable filesystem view over revision. Any
	// write through the returned FileSystem must fail; callers that need a
	// mutable tree must go through Provider.CloneCheckout instead.
	OpenFileView(ctx context.Context, revision Revision) (manifest.FileSystem, error)
	// CommitTime returns the commit timestamp for revision, used for
	// tie-breaking equal versions on differently-cased tags.
	CommitTime(ctx context.Context, revision Revision) (time.Time, error)
}
