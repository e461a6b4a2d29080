package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
	"github.com/forgepm/forge/pkg/repo"
	"github.com/forgepm/forge/pkg/resolve"
)

// diskFS is a minimal manifest.FileSystem reading real files on disk,
// standing in for the provider's real checkout-backed filesystem in tests.
type diskFS struct{ root string }

func (d *diskFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, path))
}
func (d *diskFS) Stat(path string) (bool, bool, error) {
	fi, err := os.Stat(filepath.Join(d.root, path))
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, fi.IsDir(), nil
}
func (d *diskFS) Walk(root string, fn func(string, bool) error) error { return nil }
func (d *diskFS) Root() string                                       { return d.root }

// fakeProvider is an in-memory repo.Provider: Fetch/Open are backed by
// fakeRepo fixtures keyed by identity; CloneCheckout/Copy create real
// directories on disk so CheckoutExists/OpenCheckout behave like the
// genuine GitProvider.
type fakeProvider struct {
	repos map[ident.Identity]*fakeRepo
}

func (p *fakeProvider) Fetch(ctx context.Context, ref ident.Reference, destination string) error {
	return nil
}
func (p *fakeProvider) Open(ctx context.Context, ref ident.Reference, path string) (repo.Repository, error) {
	return p.repos[ref.Identity], nil
}
func (p *fakeProvider) CloneCheckout(ctx context.Context, ref ident.Reference, source, destination string, editable bool) error {
	return os.MkdirAll(destination, 0o755)
}
func (p *fakeProvider) CheckoutExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
func (p *fakeProvider) OpenCheckout(path string) (manifest.FileSystem, error) {
	exists, err := p.CheckoutExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, os.ErrNotExist
	}
	return &diskFS{root: path}, nil
}
func (p *fakeProvider) Copy(src, dst string) error {
	return os.MkdirAll(dst, 0o755)
}

// fakeRepo is an in-memory repo.Repository exposing a fixed tag/version set.
type fakeRepo struct {
	tags    []string
	content map[string][]byte // revision -> package.toml bytes
}

func (r *fakeRepo) Tags(ctx context.Context) ([]string, error)     { return r.tags, nil }
func (r *fakeRepo) Branches(ctx context.Context) ([]string, error) { return nil, nil }
func (r *fakeRepo) ResolveRevision(ctx context.Context, identifier string) (repo.Revision, error) {
	return repo.Revision(identifier), nil
}
func (r *fakeRepo) Fetch(ctx context.Context) error                            { return nil }
func (r *fakeRepo) Exists(ctx context.Context, revision repo.Revision) (bool, error) { return true, nil }
func (r *fakeRepo) OpenFileView(ctx context.Context, revision repo.Revision) (manifest.FileSystem, error) {
	return &staticFS{data: r.content[string(revision)]}, nil
}
func (r *fakeRepo) CommitTime(ctx context.Context, revision repo.Revision) (time.Time, error) {
	return time.Time{}, nil
}

type staticFS struct{ data []byte }

func (s *staticFS) ReadFile(path string) ([]byte, error)              { return s.data, nil }
func (s *staticFS) Stat(path string) (bool, bool, error)              { return true, false, nil }
func (s *staticFS) Walk(root string, fn func(string, bool) error) error { return nil }
func (s *staticFS) Root() string                                      { return "/fake" }

const leafManifest = `
name = "leaf"
toolsVersion = "5.0.0"
`

func setupWorkspace(t *testing.T) (*Workspace, ident.Reference) {
	t.Helper()
	sandbox := t.TempDir()

	rootDir := filepath.Join(t.TempDir(), "root")
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		t.Fatal(err)
	}
	rootManifest := `
name = "app"
toolsVersion = "5.0.0"

[[dependencies]]
location = "https://example.com/leaf"
range = "1.0.0..<3.0.0"
`
	if err := os.WriteFile(filepath.Join(rootDir, manifest.ManifestFileName), []byte(rootManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{repos: map[ident.Identity]*fakeRepo{
		"leaf": {
			tags: []string{"1.0.0", "2.0.0"},
			content: map[string][]byte{
				"1.0.0": []byte(leafManifest),
				"2.0.0": []byte(leafManifest),
			},
		},
	}}

	w, err := Open(context.Background(), sandbox, provider, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	rootRef := ident.Reference{Identity: "app", Kind: ident.KindRoot, Location: rootDir}
	return w, rootRef
}

func TestWorkspaceResolveAndMaterialize(t *testing.T) {
	w, rootRef := setupWorkspace(t)

	result, err := w.Resolve(context.Background(), []resolve.RootConstraint{
		{Ref: rootRef, Requirement: manifest.LocalPackageRequirement{}, ProductFilter: manifest.Everything()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	leafDec, ok := result.Decisions["leaf"]
	if !ok {
		t.Fatal("leaf not decided")
	}
	if leafDec.Bound.Version.String() != "2.0.0" {
		t.Errorf("leaf bound to %s, want 2.0.0", leafDec.Bound.Version)
	}

	if err := w.Materialize(context.Background(), result); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	m, ok := w.ManagedDependency("leaf")
	if !ok {
		t.Fatal("leaf not managed after Materialize")
	}
	if m.State != StateCheckout || m.Checkout.Version != "2.0.0" {
		t.Errorf("leaf managed = %+v, want checkout@2.0.0", m)
	}

	all := w.Pins().All()
	if len(all) != 1 || all[0].Identity != "leaf" {
		t.Errorf("pins = %+v, want one pin for leaf", all)
	}
}

func TestWorkspaceEditUnedit(t *testing.T) {
	w, rootRef := setupWorkspace(t)

	result, err := w.Resolve(context.Background(), []resolve.RootConstraint{
		{Ref: rootRef, Requirement: manifest.LocalPackageRequirement{}, ProductFilter: manifest.Everything()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := w.Materialize(context.Background(), result); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	before, _ := w.ManagedDependency("leaf")
	beforeCheckout := before.Checkout

	if err := w.Edit(context.Background(), "leaf", EditOptions{}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	edited, ok := w.ManagedDependency("leaf")
	if !ok || edited.State != StateEdited {
		t.Fatalf("leaf managed = %+v, want edited", edited)
	}

	if err := w.Unedit("leaf"); err != nil {
		t.Fatalf("Unedit: %v", err)
	}
	after, ok := w.ManagedDependency("leaf")
	if !ok || after.State != StateCheckout || after.Checkout != beforeCheckout {
		t.Errorf("leaf managed after Unedit = %+v, want checkout %+v", after, beforeCheckout)
	}
}

func TestWorkspaceReconcileEditedMissingCheckout(t *testing.T) {
	w, rootRef := setupWorkspace(t)

	result, err := w.Resolve(context.Background(), []resolve.RootConstraint{
		{Ref: rootRef, Requirement: manifest.LocalPackageRequirement{}, ProductFilter: manifest.Everything()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := w.Materialize(context.Background(), result); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := w.Edit(context.Background(), "leaf", EditOptions{}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	edited, _ := w.ManagedDependency("leaf")
	if err := os.RemoveAll(w.editPath(edited)); err != nil {
		t.Fatal(err)
	}

	w.ReconcileEdited()

	m, ok := w.ManagedDependency("leaf")
	if !ok || m.State != StateCheckout {
		t.Errorf("leaf managed after ReconcileEdited = %+v, want fallen back to checkout", m)
	}

	entries := w.Diagnostics().Entries()
	if len(entries) != 1 || entries[0].Kind != "MissingEditedCheckout" {
		t.Errorf("diagnostics = %+v, want one MissingEditedCheckout warning", entries)
	}
}
