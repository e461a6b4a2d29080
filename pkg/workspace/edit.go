package workspace

import (
	"context"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/ident"
)

// EditOptions selects the edit-mode checkout source: an existing working
// tree, or a fresh clone. Edit does not read Branch or Revision; a fresh
// clone stays on the repository's default branch.
type EditOptions struct {
	Branch   string
	Revision string
	Path     string // an existing unmanaged working tree to adopt in place, instead of cloning one
}

// Edit transitions id into edit mode: either adopting an existing unmanaged
// working tree at opts.Path, or cloning a fresh editable working tree from
// the dependency's bare repository. The pre-edit ManagedDependency is
// snapshotted into BasedOn so Unedit can restore it exactly.
func (w *Workspace) Edit(ctx context.Context, id ident.Identity, opts EditOptions) error {
	w.mu.Lock()
	prior, hasPrior := w.managed[id]
	w.mu.Unlock()

	if hasPrior && prior.State == StateLocal {
		return &LocalDependencyCannotBeEdited{Identity: string(id)}
	}
	if hasPrior && prior.State == StateEdited {
		return &EditConflict{Identity: string(id), Reason: AlreadyEdited}
	}

	var ref ident.Reference
	if hasPrior {
		ref = prior.Reference
	} else {
		return errors.Errorf("no managed dependency for %s; run resolve first", id)
	}

	editPath := opts.Path
	if editPath == "" {
		editPath = w.editPath(&ManagedDependency{Reference: ref})

		if _, err := w.manager.Lookup(ctx, ref, true); err != nil {
			return errors.Wrapf(err, "looking up repository for %s", id)
		}

		source := w.manager.RepoPath(ref)
		if err := w.provider.CloneCheckout(ctx, ref, source, editPath, true); err != nil {
			return errors.Wrapf(err, "cloning editable checkout for %s", id)
		}
		// opts.Branch/opts.Revision are not applied: CloneCheckout clones the
		// default branch, and the Provider interface has no checkout-to-ref
		// operation.
	}

	edited := &ManagedDependency{
		Reference: ref,
		State:     StateEdited,
		EditPath:  opts.Path,
		BasedOn:   prior,
	}
	w.setManaged(id, edited)
	return nil
}

// Unedit restores id to its pre-edit ManagedDependency, discarding the edit
// working tree's managed state (the tree itself is left on disk for the
// caller to remove or keep).
func (w *Workspace) Unedit(id ident.Identity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, ok := w.managed[id]
	if !ok || m.State != StateEdited {
		return errors.Errorf("%s is not being edited", id)
	}
	if m.BasedOn == nil {
		delete(w.managed, id)
		return nil
	}
	w.managed[id] = m.BasedOn
	return nil
}

// ReconcileEdited checks every edited dependency's working tree and, for
// any that's missing, falls back to its BasedOn checkout with a warning.
func (w *Workspace) ReconcileEdited() {
	w.mu.Lock()
	edited := make([]ident.Identity, 0)
	for id, m := range w.managed {
		if m.State == StateEdited {
			edited = append(edited, id)
		}
	}
	w.mu.Unlock()

	for _, id := range edited {
		w.mu.Lock()
		m := w.managed[id]
		w.mu.Unlock()

		path := w.editPath(m)
		exists, err := w.provider.CheckoutExists(path)
		if err != nil || exists {
			continue
		}

		w.diags.Warnf(diag.Location{URL: m.Reference.Location}, "MissingEditedCheckout",
			"dependency %q was being edited but is missing; falling back to original checkout", id)

		if m.BasedOn != nil {
			w.setManaged(id, m.BasedOn)
		}
	}
}
