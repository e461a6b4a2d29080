package repo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

type fakeRepository struct {
	fetches int32
}

func (f *fakeRepository) Tags(ctx context.Context) ([]string, error)    { return nil, nil }
func (f *fakeRepository) Branches(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeRepository) ResolveRevision(ctx context.Context, identifier string) (Revision, error) {
	return Revision(identifier), nil
}
func (f *fakeRepository) Fetch(ctx context.Context) error {
	atomic.AddInt32(&f.fetches, 1)
	return nil
}
func (f *fakeRepository) Exists(ctx context.Context, revision Revision) (bool, error) {
	return true, nil
}
func (f *fakeRepository) OpenFileView(ctx context.Context, revision Revision) (manifest.FileSystem, error) {
	return nil, nil
}
func (f *fakeRepository) CommitTime(ctx context.Context, revision Revision) (time.Time, error) {
	return time.Time{}, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	fetchCnt int
	repos    map[string]*fakeRepository
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{repos: make(map[string]*fakeRepository)}
}

func (p *fakeProvider) Fetch(ctx context.Context, ref ident.Reference, destination string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCnt++
	p.repos[destination] = &fakeRepository{}
	return nil
}

func (p *fakeProvider) Open(ctx context.Context, ref ident.Reference, path string) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.repos[path]
	if !ok {
		r = &fakeRepository{}
		p.repos[path] = r
	}
	return r, nil
}

func (p *fakeProvider) CloneCheckout(ctx context.Context, ref ident.Reference, source, destination string, editable bool) error {
	return nil
}
func (p *fakeProvider) CheckoutExists(path string) (bool, error)              { return false, nil }
func (p *fakeProvider) OpenCheckout(path string) (manifest.FileSystem, error) { return nil, nil }
func (p *fakeProvider) Copy(src, dst string) error                           { return nil }

func TestManagerLookupCoalescesFetch(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p, t.TempDir())
	ref, err := ident.NewReference("https://example.com/foo/bar", ident.KindRemote)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Lookup(context.Background(), ref, true); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchCnt != 1 {
		t.Errorf("fetchCnt = %d, want 1 (concurrent lookups should coalesce)", p.fetchCnt)
	}
}
