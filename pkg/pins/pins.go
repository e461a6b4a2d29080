// Package pins implements the Pins Store: a persistent map from identity to
// a pinned checkout state, serialized as a versioned JSON pins file.
package pins

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
)

// CheckoutState is one of version/revision/branch+revision, always carrying
// a concrete revision when materialized.
type CheckoutState struct {
	Revision string
	Version  string // optional
	Branch   string // optional
}

// Pin associates a Reference with a CheckoutState.
type Pin struct {
	Identity      ident.Identity
	RepositoryURL string
	State         CheckoutState
}

// fileVersion is the pins file schema version.
const fileVersion = 1

type rawFile struct {
	Version int      `json:"version"`
	Pins    []rawPin `json:"pins"`
}

type rawPin struct {
	Identity      string        `json:"identity"`
	RepositoryURL string        `json:"repositoryURL"`
	State         rawPinState   `json:"state"`
}

type rawPinState struct {
	Revision string `json:"revision"`
	Version  string `json:"version,omitempty"`
	Branch   string `json:"branch,omitempty"`
}

// Store owns the on-disk pins file. It is mutated only by the Workspace,
// never by the resolver directly.
type Store struct {
	path string

	mu   sync.Mutex // serializes saves
	pins map[ident.Identity]Pin
}

// NewStore returns an empty, unbacked Store (call Load to populate it from
// disk, or Save to create the file for the first time).
func NewStore(path string) *Store {
	return &Store{path: path, pins: make(map[ident.Identity]Pin)}
}

// Path returns the on-disk location this Store reads and writes.
func (s *Store) Path() string { return s.path }

// Load reads the pins file at path. A missing file is not an error; it
// yields an empty Store, matching a project with no prior pins.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading pins file %s", s.path)
	}

	var rf rawFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return errors.Wrapf(err, "parsing pins file %s", s.path)
	}

	pins := make(map[ident.Identity]Pin, len(rf.Pins))
	for _, rp := range rf.Pins {
		if rp.State.Revision == "" {
			return errors.Errorf("pin %q is missing a revision", rp.Identity)
		}
		id := ident.Identity(rp.Identity)
		if _, dup := pins[id]; dup {
			return errors.Errorf("duplicate pin for identity %q", rp.Identity)
		}
		pins[id] = Pin{
			Identity:      id,
			RepositoryURL: rp.RepositoryURL,
			State: CheckoutState{
				Revision: rp.State.Revision,
				Version:  rp.State.Version,
				Branch:   rp.State.Branch,
			},
		}
	}

	s.mu.Lock()
	s.pins = pins
	s.mu.Unlock()
	return nil
}

// Get returns the pin for id, if any.
func (s *Store) Get(id ident.Identity) (Pin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[id]
	return p, ok
}

// All returns every pin, sorted by identity.
func (s *Store) All() []Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })
	return out
}

// Set installs or replaces the pin for id.
func (s *Store) Set(p Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[p.Identity] = p
}

// Remove drops the pin for id, reporting whether one existed.
func (s *Store) Remove(id ident.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pins[id]
	delete(s.pins, id)
	return ok
}

// Save persists the store atomically: it writes to a temp file in the same
// directory and renames over the target, so readers either see the pre- or
// post-write file, never a partial one.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Identity.Less(all[j].Identity) })

	rf := rawFile{Version: fileVersion}
	for _, p := range all {
		rf.Pins = append(rf.Pins, rawPin{
			Identity:      string(p.Identity),
			RepositoryURL: p.RepositoryURL,
			State: rawPinState{
				Revision: p.State.Revision,
				Version:  p.State.Version,
				Branch:   p.State.Branch,
			},
		})
	}

	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding pins file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating pins file directory")
	}

	tmp, err := os.CreateTemp(dir, ".pins-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp pins file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp pins file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp pins file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrap(err, "renaming pins file into place")
	}
	return nil
}
