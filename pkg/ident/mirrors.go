package ident

import (
	"sync"

	radix "github.com/armon/go-radix"
)

// Mirrors is a location-rewriting table consulted before every
// location-sensitive lookup (container creation, repository fetch, identity
// derivation for a user-supplied location). It is a prefix table rather than
// a flat map so a single mirror entry for a host can redirect every package
// under it, the way a corporate Git mirror typically works.
//
// Lookups and mutations are safe for concurrent use; the resolver and
// workspace may consult mirrors from multiple goroutines while the CLI's
// `config set-mirror`/`unset-mirror` commands mutate it.
type Mirrors struct {
	mu   sync.RWMutex
	tree *radix.Tree
}

// NewMirrors returns an empty mirror table.
func NewMirrors() *Mirrors {
	return &Mirrors{tree: radix.New()}
}

// Set installs (or replaces) a mirror rewriting originalURL's prefix to
// mirrorURL's prefix.
func (m *Mirrors) Set(originalURL, mirrorURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Insert(originalURL, mirrorURL)
}

// Unset removes a previously configured mirror. It reports whether an entry
// existed.
func (m *Mirrors) Unset(originalURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tree.Delete(originalURL)
	return ok
}

// Get returns the mirror configured for exactly originalURL, for the CLI's
// `config get-mirror`.
func (m *Mirrors) Get(originalURL string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tree.Get(originalURL)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Rewrite applies the longest matching mirror prefix to location, returning
// location unchanged if no mirror prefix matches. Every entry point that
// accepts a user-provided location (resolver root constraints, repository
// manager lookups, container construction) must call Rewrite before
// deriving an Identity or touching the network.
func (m *Mirrors) Rewrite(location string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix, mirror, ok := m.tree.LongestPrefix(location)
	if !ok {
		return location
	}
	return mirror + location[len(prefix):]
}

// MirrorEntry is one configured original-to-mirror rewrite, for listing and
// persisting the whole table.
type MirrorEntry struct {
	Original string
	Mirror   string
}

// Entries returns every configured mirror, sorted by original URL, for the
// CLI's `config` command and for persisting the table to disk.
func (m *Mirrors) Entries() []MirrorEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MirrorEntry
	m.tree.Walk(func(s string, v interface{}) bool {
		out = append(out, MirrorEntry{Original: s, Mirror: v.(string)})
		return false
	})
	return out
}
