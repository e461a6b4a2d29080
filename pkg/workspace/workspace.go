// Package workspace implements the top-level orchestrator: it drives the
// Dependency Resolver, materializes checkouts through the Repository
// Manager, reconciles the Pins Store, and applies edit-mode overrides, all
// against an on-disk sandbox exclusive to one Workspace instance.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/forgepm/forge/pkg/container"
	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/pins"
	"github.com/forgepm/forge/pkg/repo"
	"github.com/forgepm/forge/pkg/resolve"
)

// Layout is the on-disk sandbox layout.
type Layout struct {
	Checkouts    string
	Edits        string
	Repositories string
	Artifacts    string
	Build        string
	lockFile     string
}

func newLayout(sandbox string) Layout {
	return Layout{
		Checkouts:    filepath.Join(sandbox, "checkouts"),
		Edits:        filepath.Join(sandbox, "edits"),
		Repositories: filepath.Join(sandbox, "repositories"),
		Artifacts:    filepath.Join(sandbox, "artifacts"),
		Build:        filepath.Join(sandbox, ".build"),
		lockFile:     filepath.Join(sandbox, ".forge.lock"),
	}
}

// Workspace is the top-level orchestrator bound to one sandbox directory.
// Concurrent Workspaces pointing at the same sandbox have undefined
// behavior; the advisory flock in New/Close guards against the common case
// of two processes racing on the same sandbox, not against a determined
// second instance bypassing the lock file.
type Workspace struct {
	sandbox  string
	layout   Layout
	provider repo.Provider
	manager  *repo.Manager
	mirrors  *ident.Mirrors
	pins     *pins.Store
	loader   *manifest.Loader
	cache    *container.DependencyCache
	diags    *diag.Sink
	lock     *flock.Flock

	mu      sync.Mutex
	managed map[ident.Identity]*ManagedDependency
}

// Open acquires exclusive access to sandbox and wires up the Repository
// Manager, Pins Store, and dependency cache beneath it. Callers must call
// Close when done.
func Open(ctx context.Context, sandbox string, provider repo.Provider, mirrors *ident.Mirrors) (*Workspace, error) {
	layout := newLayout(sandbox)
	for _, dir := range []string{layout.Checkouts, layout.Edits, layout.Repositories, layout.Artifacts, layout.Build} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating sandbox directory %s", dir)
		}
	}

	lock := flock.NewFlock(layout.lockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquiring workspace sandbox lock")
	}
	if !locked {
		return nil, errors.Errorf("sandbox %s is locked by another workspace instance", sandbox)
	}

	pinsStore := pins.NewStore(filepath.Join(sandbox, "pins.json"))
	if err := pinsStore.Load(); err != nil {
		lock.Unlock()
		return nil, err
	}

	cache, err := container.OpenDependencyCache(filepath.Join(layout.Build, "deps.db"))
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	w := &Workspace{
		sandbox:  sandbox,
		layout:   layout,
		provider: provider,
		manager:  repo.NewManager(provider, layout.Repositories),
		mirrors:  mirrors,
		pins:     pinsStore,
		loader:   manifest.NewLoader(mirrors),
		cache:    cache,
		diags:    diag.NewSink(),
		lock:     lock,
		managed:  make(map[ident.Identity]*ManagedDependency),
	}
	return w, nil
}

// Close releases the dependency cache and the sandbox lock.
func (w *Workspace) Close() error {
	w.manager.Cancel()
	cacheErr := w.cache.Close()
	lockErr := w.lock.Unlock()
	if cacheErr != nil {
		return cacheErr
	}
	return lockErr
}

// Diagnostics returns the workspace's accumulated diagnostics sink.
func (w *Workspace) Diagnostics() *diag.Sink { return w.diags }

// Pins returns the workspace's Pins Store.
func (w *Workspace) Pins() *pins.Store { return w.pins }

// rewriteRef applies the mirror table; callers must apply mirrors at every
// entry point that accepts a user-provided location.
func (w *Workspace) rewriteRef(ref ident.Reference) ident.Reference {
	if w.mirrors == nil {
		return ref
	}
	rewritten := w.mirrors.Rewrite(ref.Location)
	if rewritten == ref.Location {
		return ref
	}
	id, err := ident.DeriveIdentity(rewritten)
	if err != nil {
		return ref
	}
	return ident.Reference{Identity: id, Kind: ref.Kind, Location: rewritten}
}

// containerFor returns (building and caching, if necessary) the Container
// for ref, implementing resolve.ContainerProvider.
func (w *Workspace) containerFor(ctx context.Context, ref ident.Reference) (container.Container, error) {
	w.mu.Lock()
	managed, hasManaged := w.managed[ref.Identity]
	w.mu.Unlock()

	switch {
	case ref.Kind == ident.KindRoot || ref.Kind == ident.KindLocal:
		fs, err := w.provider.OpenCheckout(ref.Location)
		if err != nil {
			// Root/local packages are opened only through the provider's
			// OpenCheckout; there is no plain-directory fallback, so a
			// location the provider does not accept as a checkout fails here.
			return nil, errors.Wrapf(err, "opening local package at %s", ref.Location)
		}
		return container.NewLocalContainer(ref.Identity, fs, w.loader), nil

	case hasManaged && managed.State == StateEdited:
		path := w.editPath(managed)
		exists, err := w.provider.CheckoutExists(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &MissingEditedCheckout{Identity: string(ref.Identity), Recoverable: managed.BasedOn != nil}
		}
		fs, err := w.provider.OpenCheckout(path)
		if err != nil {
			return nil, err
		}
		return container.NewLocalContainer(ref.Identity, fs, w.loader), nil

	default:
		bareRepo, err := w.manager.Lookup(ctx, ref, false)
		if err != nil {
			return nil, err
		}
		return container.NewRepositoryBackedContainer(ref.Identity, bareRepo, w.loader, w.cache), nil
	}
}

// GetContainer implements resolve.ContainerProvider.
func (w *Workspace) GetContainer(ctx context.Context, ref ident.Reference) (container.Container, error) {
	return w.containerFor(ctx, w.rewriteRef(ref))
}

// Resolve runs the Dependency Resolver over roots, preferring the
// workspace's current pins.
func (w *Workspace) Resolve(ctx context.Context, roots []resolve.RootConstraint) (*resolve.Result, error) {
	// Hand the resolver a nil interface, not a nil *ident.Mirrors, when no
	// mirror table is configured: the resolver only skips rewriting on nil.
	var mirrors interface{ Rewrite(string) string }
	if w.mirrors != nil {
		mirrors = w.mirrors
	}
	r := resolve.New(w, mirrors, w.pins)
	return r.Solve(ctx, roots)
}

// checkoutPath is the on-disk path for a non-editable checkout:
// checkouts/<identity>-<8-hex>.
func (w *Workspace) checkoutPath(ref ident.Reference) string {
	return filepath.Join(w.layout.Checkouts, fmt.Sprintf("%s-%s", ref.Identity, repo.HashSuffix(ref)))
}

func (w *Workspace) editPath(m *ManagedDependency) string {
	if m.EditPath != "" {
		return m.EditPath
	}
	return filepath.Join(w.layout.Edits, string(m.Reference.Identity))
}

// Materialize walks result's decisions and ensures every non-local,
// non-edited identity has a working tree under checkouts/, updating the
// managed-dependency table and persisting pins on success. Checkouts must
// be materialized here before the package graph loader can read any
// resolved package's sources.
func (w *Workspace) Materialize(ctx context.Context, result *resolve.Result) error {
	for id, dec := range result.Decisions {
		ref, ok := result.References[id]
		if !ok {
			continue
		}

		w.mu.Lock()
		existing, hasExisting := w.managed[id]
		w.mu.Unlock()
		if hasExisting && existing.State == StateEdited {
			continue // edited dependencies are never overwritten by Materialize
		}

		switch dec.Kind {
		case resolve.DecisionUnversioned:
			w.setManaged(id, &ManagedDependency{Reference: ref, State: StateLocal})
			continue
		}

		if _, err := w.manager.Lookup(ctx, ref, true); err != nil {
			return errors.Wrapf(err, "looking up repository for %s", id)
		}

		dest := w.checkoutPath(ref)
		exists, err := w.provider.CheckoutExists(dest)
		if err != nil {
			return err
		}
		if !exists {
			source := w.manager.RepoPath(ref)
			if err := w.provider.CloneCheckout(ctx, ref, source, dest, false); err != nil {
				return errors.Wrapf(err, "materializing checkout for %s", id)
			}
		}

		state := pins.CheckoutState{Revision: string(dec.Bound.Revision)}
		if dec.Bound.Version != nil {
			state.Version = dec.Bound.Version.String()
		}
		if dec.Bound.Branch != "" {
			state.Branch = dec.Bound.Branch
		}

		w.setManaged(id, &ManagedDependency{Reference: ref, State: StateCheckout, Checkout: state})
	}

	return w.reconcilePins()
}

func (w *Workspace) setManaged(id ident.Identity, m *ManagedDependency) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.managed[id] = m
}

// ManagedDependency returns the workspace's lifecycle record for id.
func (w *Workspace) ManagedDependency(id ident.Identity) (*ManagedDependency, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.managed[id]
	return m, ok
}

// reconcilePins writes the current managed-dependency checkout states to
// the Pins Store. The Pins Store is mutated only by the Workspace.
func (w *Workspace) reconcilePins() error {
	w.mu.Lock()
	snapshot := make([]*ManagedDependency, 0, len(w.managed))
	for _, m := range w.managed {
		snapshot = append(snapshot, m)
	}
	w.mu.Unlock()

	for _, m := range snapshot {
		if m.State != StateCheckout {
			continue
		}
		w.pins.Set(pins.Pin{
			Identity:      m.Reference.Identity,
			RepositoryURL: m.Reference.Location,
			State:         m.Checkout,
		})
	}
	return w.pins.Save()
}
