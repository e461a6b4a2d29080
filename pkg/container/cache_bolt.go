package container

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	bolt "github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

var depsBucket = []byte("dependencies")

// DependencyCache is the write-once, write-through cache keyed by
// (identity, revision, productFilter): entries are written once under a
// lock, and reads of an already-installed key are identical regardless of
// which concurrent computation wins the race.
//
// It is backed by a single boltdb/bolt database for the lifetime of the
// Workspace's resolve+load cycle. Composite keys are built with
// jmank88/nuts so identity/revision/productFilter segments compose into one
// ordered byte key without manual length-prefixing.
type DependencyCache struct {
	db *bolt.DB
	mu sync.Mutex // guards the write-once install, bolt itself serializes writers
}

// OpenDependencyCache opens (creating if absent) the bolt database at path.
func OpenDependencyCache(path string) (*DependencyCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating dependency cache directory")
	}
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening dependency cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(depsBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing dependency cache bucket")
	}
	return &DependencyCache{db: db}, nil
}

// Close releases the underlying bolt handle.
func (c *DependencyCache) Close() error { return c.db.Close() }

func cacheKey(id ident.Identity, revision string, pf manifest.ProductFilter) []byte {
	k := make(nuts.Key, 0, 64)
	k = k.PutString(string(id))
	k = k.PutString(revision)
	if pf.IsEverything() {
		k = k.PutString("*")
	} else {
		names := pf.Names()
		// Sort so the key is stable regardless of map iteration order.
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				if names[j] < names[i] {
					names[i], names[j] = names[j], names[i]
				}
			}
		}
		for _, n := range names {
			k = k.PutString(n)
		}
	}
	return k
}

// GetOrCompute returns the cached dependency list for (id, revision, pf),
// computing it via compute and installing the result if absent. Concurrent
// calls for the same key may both run compute, but only the first result
// observed under the lock is installed; all callers see that value.
func (c *DependencyCache) GetOrCompute(id ident.Identity, revision string, pf manifest.ProductFilter, compute func() ([]manifest.Dependency, error)) ([]manifest.Dependency, error) {
	key := cacheKey(id, revision, pf)

	var cached []manifest.Dependency
	var hit bool
	c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(depsBucket)
		v := b.Get(key)
		if v != nil {
			hit = json.Unmarshal(v, &cached) == nil
		}
		return nil
	})
	if hit {
		return cached, nil
	}

	computed, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var installed []manifest.Dependency
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(depsBucket)
		if v := b.Get(key); v != nil {
			return json.Unmarshal(v, &installed)
		}
		raw, err := json.Marshal(computed)
		if err != nil {
			return err
		}
		installed = computed
		return b.Put(key, raw)
	})
	if err != nil {
		return nil, errors.Wrap(err, "installing dependency cache entry")
	}
	return installed, nil
}
