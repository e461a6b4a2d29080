package graph

import (
	"testing"

	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

func dep(identity string, pf manifest.ProductFilter) manifest.Dependency {
	return manifest.Dependency{Identity: ident.Identity(identity), ProductFilter: pf}
}

func TestLoadWiresPackageAndTargetDependencies(t *testing.T) {
	app := ManifestSource{
		Identity: "app",
		Manifest: &manifest.Manifest{
			Name:         "App",
			Dependencies: []manifest.Dependency{dep("lib", manifest.Everything())},
			Targets: []manifest.Target{{
				Name:         "App",
				Dependencies: []manifest.TargetDependency{{ProductName: "Lib"}},
			}},
		},
	}
	lib := ManifestSource{
		Identity: "lib",
		Manifest: &manifest.Manifest{
			Name:    "Lib",
			Targets: []manifest.Target{{Name: "Lib"}},
			Products: []manifest.Product{{
				Name:    "Lib",
				Targets: []string{"Lib"},
				Kind:    manifest.ProductLibrary,
			}},
		},
	}

	diags := diag.NewSink()
	g, err := Load([]ManifestSource{app}, []ManifestSource{lib}, diags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(diags.Entries()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}

	appPkg, ok := g.PackageByIdentity("app")
	if !ok {
		t.Fatal("app package missing")
	}
	libPkg, ok := g.PackageByIdentity("lib")
	if !ok {
		t.Fatal("lib package missing")
	}

	if len(appPkg.Dependencies) != 1 || appPkg.Dependencies[0] != libPkg.ID {
		t.Fatalf("app.Dependencies = %v, want [%v]", appPkg.Dependencies, libPkg.ID)
	}

	if len(appPkg.Targets) != 1 {
		t.Fatalf("app has %d targets, want 1", len(appPkg.Targets))
	}
	appTarget := appPkg.Targets[0]

	libProduct, ok := libPkg.ProductByName("Lib")
	if !ok {
		t.Fatal("lib product missing")
	}

	var found bool
	for _, e := range appTarget.Dependencies {
		if e.Kind == EdgeToProduct && e.Product == libProduct.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("App target has no edge to Lib product: %v", appTarget.Dependencies)
	}
}

func TestLoadDetectsCycle(t *testing.T) {
	a := ManifestSource{
		Identity: "A",
		Manifest: &manifest.Manifest{
			Name:         "A",
			Dependencies: []manifest.Dependency{dep("B", manifest.Everything())},
		},
	}
	b := ManifestSource{
		Identity: "B",
		Manifest: &manifest.Manifest{
			Name:         "B",
			Dependencies: []manifest.Dependency{dep("A", manifest.Everything())},
		},
	}

	diags := diag.NewSink()
	g, err := Load([]ManifestSource{a}, []ManifestSource{b}, diags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var cycleEntries []diag.Diagnostic
	for _, e := range diags.Entries() {
		if e.Kind == KindCycleDetected {
			cycleEntries = append(cycleEntries, e)
		}
	}
	if len(cycleEntries) != 1 {
		t.Fatalf("got %d CycleDetected diagnostics, want 1: %v", len(cycleEntries), diags.Entries())
	}
	if want := "dependency cycle: A -> B -> A"; cycleEntries[0].Message != want {
		t.Fatalf("cycle message = %q, want %q", cycleEntries[0].Message, want)
	}

	if len(g.Packages) == 0 {
		t.Fatal("expected a partial graph with at least one package")
	}
	if _, ok := g.PackageByIdentity("A"); !ok {
		t.Fatal("expected A to survive in the partial graph")
	}
}

func TestLoadDetectsDuplicateProduct(t *testing.T) {
	root := ManifestSource{
		Identity: "root",
		Manifest: &manifest.Manifest{
			Name: "Root",
			Dependencies: []manifest.Dependency{
				dep("pkg1", manifest.Everything()),
				dep("pkg2", manifest.Everything()),
			},
			Targets: []manifest.Target{{
				Name:         "Root",
				Dependencies: []manifest.TargetDependency{{ProductName: "Foo"}},
			}},
		},
	}
	pkg1 := ManifestSource{
		Identity: "pkg1",
		Manifest: &manifest.Manifest{
			Name:     "Pkg1",
			Targets:  []manifest.Target{{Name: "Foo"}},
			Products: []manifest.Product{{Name: "Foo", Targets: []string{"Foo"}, Kind: manifest.ProductLibrary}},
		},
	}
	pkg2 := ManifestSource{
		Identity: "pkg2",
		Manifest: &manifest.Manifest{
			Name:     "Pkg2",
			Targets:  []manifest.Target{{Name: "Foo"}},
			Products: []manifest.Product{{Name: "Foo", Targets: []string{"Foo"}, Kind: manifest.ProductLibrary}},
		},
	}

	diags := diag.NewSink()
	g, err := Load([]ManifestSource{root}, []ManifestSource{pkg1, pkg2}, diags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var sawDuplicate, sawNotFound bool
	for _, e := range diags.Entries() {
		if e.Kind == KindDuplicateProduct {
			sawDuplicate = true
		}
		if e.Kind == KindProductDependencyNotFound {
			sawNotFound = true
		}
	}
	if !sawDuplicate {
		t.Fatalf("expected a DuplicateProduct diagnostic: %v", diags.Entries())
	}
	if !sawNotFound {
		t.Fatalf("expected downstream resolution to treat Foo as missing: %v", diags.Entries())
	}

	p1, _ := g.PackageByIdentity("pkg1")
	p2, _ := g.PackageByIdentity("pkg2")
	if len(p1.Products) != 0 || len(p2.Products) != 0 {
		t.Fatalf("expected duplicate products removed from both packages, got %d and %d", len(p1.Products), len(p2.Products))
	}
}

func TestLoadFlattensProductFilters(t *testing.T) {
	root := ManifestSource{
		Identity: "root",
		Manifest: &manifest.Manifest{
			Name: "Root",
			Dependencies: []manifest.Dependency{
				dep("lib", manifest.Specific("A")),
				dep("other", manifest.Everything()),
			},
		},
	}
	other := ManifestSource{
		Identity: "other",
		Manifest: &manifest.Manifest{
			Name:         "Other",
			Dependencies: []manifest.Dependency{dep("lib", manifest.Specific("B"))},
		},
	}
	lib := ManifestSource{
		Identity: "lib",
		Manifest: &manifest.Manifest{Name: "Lib"},
	}

	diags := diag.NewSink()
	g, err := Load([]ManifestSource{root}, []ManifestSource{other, lib}, diags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	libPkg, ok := g.PackageByIdentity("lib")
	if !ok {
		t.Fatal("lib package missing")
	}
	if libPkg.ProductFilter.IsEverything() {
		t.Fatal("lib's filter should not be Everything")
	}
	if !libPkg.ProductFilter.Contains("B") {
		t.Fatal("expected flattened filter to contain B (demanded transitively by other, not root)")
	}
}

func TestLoadMissingManifestSourceIsAnError(t *testing.T) {
	root := ManifestSource{
		Identity: "root",
		Manifest: &manifest.Manifest{
			Name:         "Root",
			Dependencies: []manifest.Dependency{dep("missing", manifest.Everything())},
		},
	}

	diags := diag.NewSink()
	_, err := Load([]ManifestSource{root}, nil, diags)
	if err == nil {
		t.Fatal("expected an error for an unresolved manifest source")
	}
	if _, ok := err.(*MissingManifestSource); !ok {
		t.Fatalf("err = %T, want *MissingManifestSource", err)
	}
}
