package workspace

import "github.com/forgepm/forge/pkg/ident"

// CheckoutPath returns the on-disk working-tree path Materialize placed (or
// Edit adopted) id's dependency at, so a caller building FileSystem views
// for the package graph loader doesn't need to re-derive the checkout
// naming scheme. It reports false if id has no managed dependency yet.
func (w *Workspace) CheckoutPath(id ident.Identity) (string, bool) {
	m, ok := w.ManagedDependency(id)
	if !ok {
		return "", false
	}
	switch m.State {
	case StateLocal:
		return m.Reference.Location, true
	case StateEdited:
		return w.editPath(m), true
	default:
		return w.checkoutPath(m.Reference), true
	}
}

// Sandbox returns the workspace's sandbox root directory.
func (w *Workspace) Sandbox() string { return w.sandbox }

// PinsPath returns the pins file path this workspace reads and writes.
func (w *Workspace) PinsPath() string { return w.pins.Path() }
