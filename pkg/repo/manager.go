package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	constext "github.com/sdboyer/constext"

	"github.com/forgepm/forge/pkg/ident"
)

// Manager owns a process-wide pool of bare repositories keyed by location.
// Concurrent Lookups for the same key coalesce into one Fetch; other
// callers wait for it. Writes to a given repository are serialized by a
// per-repo writer barrier (see gitRepository.lockWrite); reads proceed
// concurrently once the handle exists.
type Manager struct {
	provider Provider
	baseDir  string // "repositories/" under the workspace sandbox

	mu         sync.Mutex
	entries    map[ident.Identity]*poolEntry
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

type poolEntry struct {
	once sync.Once
	err  error
	repo Repository
	path string
}

// NewManager constructs a Manager backed by provider, storing bare clones
// under baseDir/<identity>-<8-hex>.
func NewManager(provider Provider, baseDir string) *Manager {
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())
	return &Manager{
		provider:    provider,
		baseDir:     baseDir,
		entries:     make(map[ident.Identity]*poolEntry),
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
}

func (m *Manager) shutdown() context.Context { return m.shutdownCtx }

// Cancel asks every in-flight Provider operation started through this
// Manager to terminate (best-effort).
func (m *Manager) Cancel() { m.shutdownFn() }

// HashSuffix returns the first 8 hex chars of SHA-256(ref.Location), the
// disambiguating suffix attached to both bare-repo and checkout directory
// names so a checkout and its source repo name consistently.
func HashSuffix(ref ident.Reference) string {
	sum := sha256.Sum256([]byte(ref.Location))
	return hex.EncodeToString(sum[:])[:8]
}

// RepoPath returns the deterministic on-disk path for ref's bare clone.
func (m *Manager) RepoPath(ref ident.Reference) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("%s-%s", ref.Identity, HashSuffix(ref)))
}

// Lookup returns the pooled Repository for ref, fetching (or opening) it if
// necessary. When skipUpdate is false and a handle already exists, a fresh
// Fetch is performed before returning; concurrent Lookups for the same
// identity share a single in-flight fetch-or-open.
func (m *Manager) Lookup(ctx context.Context, ref ident.Reference, skipUpdate bool) (Repository, error) {
	m.mu.Lock()
	entry, existed := m.entries[ref.Identity]
	if !existed {
		entry = &poolEntry{path: m.RepoPath(ref)}
		m.entries[ref.Identity] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.repo, entry.err = m.fetchOrOpen(ctx, ref, entry.path)
	})
	if entry.err != nil {
		return nil, entry.err
	}

	if existed && !skipUpdate {
		if err := entry.repo.Fetch(ctx); err != nil {
			return nil, err
		}
	}
	return entry.repo, nil
}

func (m *Manager) fetchOrOpen(ctx context.Context, ref ident.Reference, path string) (Repository, error) {
	// constext.Cons merges the caller's context with the manager's own
	// cancellation signal so a Cancel() on the manager can unblock
	// in-flight fetches without every caller needing to share one context.
	mergedCtx, cancel := constext.Cons(ctx, m.shutdown())
	defer cancel()

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := m.provider.Fetch(mergedCtx, ref, path); err != nil {
			return nil, err
		}
	}
	return m.provider.Open(mergedCtx, ref, path)
}

// Release drops all pooled handles. Subsequent Lookups re-open from disk.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[ident.Identity]*poolEntry)
}

func pathExists(path string) (bool, error) {
	fi, err := statNoFollow(path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return fi != nil, nil
}
