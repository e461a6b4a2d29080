package buildplan

import (
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/forgepm/forge/pkg/diag"
	"github.com/forgepm/forge/pkg/graph"
	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// memFS is a minimal in-memory manifest.FileSystem fake: files is a flat
// set of file paths, directories are implied by their prefixes.
type memFS struct {
	files []string
}

func (f *memFS) ReadFile(p string) ([]byte, error) { return nil, nil }

func (f *memFS) Stat(p string) (bool, bool, error) {
	for _, file := range f.files {
		if file == p {
			return true, false, nil
		}
		if strings.HasPrefix(file, p+"/") {
			return true, true, nil
		}
	}
	return false, false, nil
}

func (f *memFS) Walk(root string, fn func(string, bool) error) error {
	var matched []string
	for _, file := range f.files {
		if file == root || strings.HasPrefix(file, root+"/") {
			matched = append(matched, file)
		}
	}
	sort.Strings(matched)
	for _, file := range matched {
		if err := fn(file, false); err != nil {
			return err
		}
	}
	return nil
}

func (f *memFS) Root() string { return "/mem" }

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()

	appFS := &memFS{files: []string{"Sources/App/main.swift"}}
	libFS := &memFS{files: []string{"Sources/Lib/lib.swift", "Sources/Lib/helper.c"}}

	app := graph.ManifestSource{
		Identity: "app",
		FS:       appFS,
		Manifest: &manifest.Manifest{
			Name:         "App",
			Dependencies: []manifest.Dependency{{Identity: "lib", ProductFilter: manifest.Everything()}},
			Targets: []manifest.Target{{
				Name:         "App",
				Dependencies: []manifest.TargetDependency{{ProductName: "Lib"}},
			}},
			Products: []manifest.Product{{Name: "App", Targets: []string{"App"}, Kind: manifest.ProductExecutable}},
		},
	}
	lib := graph.ManifestSource{
		Identity: "lib",
		FS:       libFS,
		Manifest: &manifest.Manifest{
			Name:     "Lib",
			Targets:  []manifest.Target{{Name: "Lib"}},
			Products: []manifest.Product{{Name: "Lib", Targets: []string{"Lib"}, Kind: manifest.ProductLibrary}},
		},
	}

	diags := diag.NewSink()
	g, err := graph.Load([]graph.ManifestSource{app}, []graph.ManifestSource{lib}, diags)
	if err != nil {
		t.Fatalf("graph.Load: %v", err)
	}
	if len(diags.Entries()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	return g
}

func TestNewDiscoversSourcesAndLanguage(t *testing.T) {
	g := buildGraph(t)
	plan, err := New(g, BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	libPkg, _ := g.PackageByIdentity("lib")
	libTarget, _ := libPkg.TargetByName("Lib")
	desc, ok := plan.Target(libTarget.ID)
	if !ok {
		t.Fatal("missing Lib target description")
	}
	if desc.Language != LanguageSwift {
		t.Fatalf("Lib contains a .swift file, want LanguageSwift, got %v", desc.Language)
	}
	if len(desc.Sources) != 2 {
		t.Fatalf("Lib sources = %v, want 2 files", desc.Sources)
	}
	if len(desc.ObjectPaths) != len(desc.Sources) {
		t.Fatalf("ObjectPaths/Sources length mismatch: %d vs %d", len(desc.ObjectPaths), len(desc.Sources))
	}
}

func TestNewModuleNameMangling(t *testing.T) {
	cases := map[string]string{
		"App":      "App",
		"my-lib":   "my_lib",
		"2Fast":    "_2Fast",
		"a.b.c":    "a_b_c",
	}
	for in, want := range cases {
		if got := mangleModuleName(in); got != want {
			t.Errorf("mangleModuleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewWiresLibraryBinaryPathIntoDependentTarget(t *testing.T) {
	g := buildGraph(t)
	plan, err := New(g, BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	appPkg, _ := g.PackageByIdentity("app")
	appTarget, _ := appPkg.TargetByName("App")
	desc, ok := plan.Target(appTarget.ID)
	if !ok {
		t.Fatal("missing App target description")
	}
	if len(desc.LibraryBinaryPaths) != 1 {
		t.Fatalf("App.LibraryBinaryPaths = %v, want exactly the Lib archive", desc.LibraryBinaryPaths)
	}
	if !strings.HasSuffix(desc.LibraryBinaryPaths[0], "libLib.a") {
		t.Fatalf("App.LibraryBinaryPaths[0] = %q, want a libLib.a path", desc.LibraryBinaryPaths[0])
	}

	appProduct, _ := appPkg.ProductByName("App")
	prodDesc, ok := plan.Product(appProduct.ID)
	if !ok {
		t.Fatal("missing App product description")
	}
	if !strings.HasSuffix(prodDesc.BinaryPath, path.Join("app", "App")) {
		t.Fatalf("App product binary path = %q", prodDesc.BinaryPath)
	}
}

func TestNewDebuggingStrategyDerivedFromPlatform(t *testing.T) {
	g := buildGraph(t)

	linuxPlan, err := New(g, BuildEnvironment{Platform: "linux", Configuration: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if linuxPlan.Environment.DebuggingStrategy != DebuggingStrategyModulewrap {
		t.Fatalf("linux DebuggingStrategy = %v, want modulewrap", linuxPlan.Environment.DebuggingStrategy)
	}

	macPlan, err := New(g, BuildEnvironment{Platform: "macosx", Configuration: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if macPlan.Environment.DebuggingStrategy != DebuggingStrategyDsym {
		t.Fatalf("macosx DebuggingStrategy = %v, want dsym", macPlan.Environment.DebuggingStrategy)
	}
}
