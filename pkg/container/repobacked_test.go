package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
)

type fakeRepo struct {
	tags     []string
	branches []string
	revFor   map[string]repo.Revision
	files    map[repo.Revision][]byte
	missing  map[repo.Revision]bool // revisions Exists should report absent
}

func (f *fakeRepo) Tags(ctx context.Context) ([]string, error) { return f.tags, nil }
func (f *fakeRepo) Branches(ctx context.Context) ([]string, error) { return f.branches, nil }
func (f *fakeRepo) ResolveRevision(ctx context.Context, identifier string) (repo.Revision, error) {
	if r, ok := f.revFor[identifier]; ok {
		return r, nil
	}
	return repo.Revision(identifier), nil
}
func (f *fakeRepo) Fetch(ctx context.Context) error { return nil }
func (f *fakeRepo) Exists(ctx context.Context, revision repo.Revision) (bool, error) {
	return !f.missing[revision], nil
}
func (f *fakeRepo) OpenFileView(ctx context.Context, revision repo.Revision) (manifest.FileSystem, error) {
	return &staticFS{data: f.files[revision]}, nil
}
func (f *fakeRepo) CommitTime(ctx context.Context, revision repo.Revision) (time.Time, error) {
	return time.Time{}, nil
}

type staticFS struct{ data []byte }

func (s *staticFS) ReadFile(path string) ([]byte, error) { return s.data, nil }
func (s *staticFS) Stat(path string) (bool, bool, error) { return true, false, nil }
func (s *staticFS) Walk(root string, fn func(path string, isDir bool) error) error { return nil }
func (s *staticFS) Root() string                                                  { return "/fake" }

const depManifest = `
name = "baz"
toolsVersion = "5.0.0"
`

func TestRepositoryBackedVersionsDescending(t *testing.T) {
	fr := &fakeRepo{
		tags: []string{"v1.0.0", "1.5.0", "v2.0.0"},
		files: map[repo.Revision][]byte{
			"v1.0.0": []byte(depManifest),
			"1.5.0":  []byte(depManifest),
			"v2.0.0": []byte(depManifest),
		},
	}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	vs, err := c.Versions(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 3 {
		t.Fatalf("len(vs) = %d, want 3", len(vs))
	}
	if vs[0].Version.String() != "2.0.0" {
		t.Errorf("vs[0] = %s, want 2.0.0 (descending order)", vs[0].Version)
	}
	if vs[2].Version.String() != "1.0.0" {
		t.Errorf("vs[2] = %s, want 1.0.0", vs[2].Version)
	}
}

func TestRepositoryBackedDependenciesCached(t *testing.T) {
	fr := &fakeRepo{
		tags:  []string{"v1.0.0"},
		files: map[repo.Revision][]byte{"v1.0.0": []byte(depManifest)},
	}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	bv := BoundVersion{Revision: "v1.0.0"}
	d1, err := c.Dependencies(context.Background(), bv, manifest.Everything())
	if err != nil {
		t.Fatal(err)
	}
	d2, err := c.Dependencies(context.Background(), bv, manifest.Everything())
	if err != nil {
		t.Fatal(err)
	}
	if len(d1) != len(d2) {
		t.Errorf("cached dependency result mismatch: %d vs %d", len(d1), len(d2))
	}
}

func TestRepositoryBackedResolveBranchReturnsTip(t *testing.T) {
	fr := &fakeRepo{
		branches: []string{"main", "feature"},
		revFor:   map[string]repo.Revision{"feature": "abc123"},
	}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	bv, err := c.ResolveBranch(context.Background(), "feature", "")
	if err != nil {
		t.Fatal(err)
	}
	if bv.Branch != "feature" || bv.Revision != "abc123" {
		t.Errorf("ResolveBranch = %+v, want branch feature at abc123", bv)
	}
}

func TestRepositoryBackedResolveBranchUnknownNameErrors(t *testing.T) {
	fr := &fakeRepo{branches: []string{"main"}}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	if _, err := c.ResolveBranch(context.Background(), "nope", ""); err == nil {
		t.Fatal("expected error for unknown branch")
	}
}

func TestRepositoryBackedResolveBranchPrefersExistingRevisionOverTip(t *testing.T) {
	fr := &fakeRepo{
		branches: []string{"feature"},
		revFor:   map[string]repo.Revision{"feature": "new456"},
	}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	bv, err := c.ResolveBranch(context.Background(), "feature", "old123")
	if err != nil {
		t.Fatal(err)
	}
	if bv.Revision != "old123" {
		t.Errorf("ResolveBranch with preferRevision = %+v, want old123", bv)
	}
}

func TestRepositoryBackedResolveBranchFallsBackWhenPreferredRevisionGone(t *testing.T) {
	fr := &fakeRepo{
		branches: []string{"feature"},
		revFor:   map[string]repo.Revision{"feature": "new456"},
		missing:  map[repo.Revision]bool{"old123": true},
	}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	bv, err := c.ResolveBranch(context.Background(), "feature", "old123")
	if err != nil {
		t.Fatal(err)
	}
	if bv.Revision != "new456" {
		t.Errorf("ResolveBranch with gone preferRevision = %+v, want fallback to tip new456", bv)
	}
}

func TestRepositoryBackedResolveRevisionFindsExactCommit(t *testing.T) {
	fr := &fakeRepo{}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	bv, err := c.ResolveRevision(context.Background(), "deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if bv.Revision != "deadbeef" {
		t.Errorf("ResolveRevision = %+v, want deadbeef", bv)
	}
}

func TestRepositoryBackedResolveRevisionMissingErrors(t *testing.T) {
	fr := &fakeRepo{missing: map[repo.Revision]bool{"deadbeef": true}}
	cache, err := OpenDependencyCache(filepath.Join(t.TempDir(), "deps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	c := NewRepositoryBackedContainer("baz", fr, manifest.NewLoader(nil), cache)
	if _, err := c.ResolveRevision(context.Background(), "deadbeef"); err == nil {
		t.Fatal("expected error for missing revision")
	}
}
