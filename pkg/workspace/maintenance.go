package workspace

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/pins"
)

// Clean removes build output only: everything under Build. Checkouts,
// edits, the repository cache, and pins are left untouched, so the next
// resolve/update has nothing to re-fetch.
func (w *Workspace) Clean() error {
	return removeContents(w.layout.Build)
}

// Reset discards the workspace's entire resolved state: build output,
// non-edited checkouts, and pins, clearing the managed-dependency table in
// memory. Edited dependencies and the repository cache survive a reset, the
// former because Reset must never discard a working tree the caller may
// have uncommitted changes in, the latter so the following resolve doesn't
// re-fetch from the network for packages it already has bare clones of.
func (w *Workspace) Reset() error {
	w.mu.Lock()
	kept := make(map[ident.Identity]*ManagedDependency, len(w.managed))
	for id, m := range w.managed {
		if m.State == StateEdited {
			kept[id] = m
		}
	}
	w.managed = kept
	w.mu.Unlock()

	if err := removeContents(w.layout.Build); err != nil {
		return err
	}
	if err := removeContents(w.layout.Checkouts); err != nil {
		return err
	}

	w.pins = pins.NewStore(filepath.Join(w.sandbox, "pins.json"))
	return w.pins.Save()
}

// removeContents deletes every entry inside dir without removing dir
// itself, so callers holding the directory open (or racing a concurrent
// MkdirAll) never see it disappear out from under them.
func removeContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", dir)
	}
	for _, e := range entries {
		path := dir + string(os.PathSeparator) + e.Name()
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "removing %s", path)
		}
	}
	return nil
}
